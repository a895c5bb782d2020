package ports

import (
	"context"

	"NewsIngest/internal/domain"
)

// ArticleStore persists admitted articles and exposes a recent window for
// cross-run duplicate detection. Upsert is atomic per call: it probes for
// an existing row by URL first, then by exact title, creates missing
// category/source reference rows, and reports whether a new row was created.
type ArticleStore interface {
	Upsert(ctx context.Context, article domain.Article) (created bool, err error)
	Recent(ctx context.Context, limit int) ([]domain.Article, error)
}

// KeywordExtractor pulls the topN salient keywords out of free text.
// Implementations tolerate short or malformed input and return an empty
// slice instead of erroring.
type KeywordExtractor interface {
	ExtractKeywords(text string, topN int) []string
}
