package dedup

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"

	"NewsIngest/internal/domain"
	"NewsIngest/internal/ports"
)

// Config tunes the similarity scoring. Threshold and weights mirror the
// production defaults; treat them as settings, not constants.
type Config struct {
	SimilarityThreshold float64
	TitleWeight         float64
	ContentWeight       float64
	TitleTopK           int
	ContentTopK         int
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.7,
		TitleWeight:         0.6,
		ContentWeight:       0.4,
		TitleTopK:           10,
		ContentTopK:         20,
	}
}

// Index buckets run-local article IDs by fingerprint. It narrows the
// candidate set during duplicate checks and lives for exactly one run.
// Not safe for unsynchronized concurrent mutation; a run owns it.
type Index struct {
	buckets map[string][]uuid.UUID
}

// NewIndex creates an empty fingerprint index.
func NewIndex() *Index {
	return &Index{buckets: map[string][]uuid.UUID{}}
}

// Add registers an article ID under a fingerprint bucket.
func (ix *Index) Add(fingerprint string, id uuid.UUID) {
	ix.buckets[fingerprint] = append(ix.buckets[fingerprint], id)
}

// Lookup returns the IDs bucketed under a fingerprint.
func (ix *Index) Lookup(fingerprint string) []uuid.UUID {
	return ix.buckets[fingerprint]
}

// Deduplicator decides whether an incoming article duplicates one already
// seen in the current run or in the recent stored window.
type Deduplicator struct {
	cfg       Config
	extractor ports.KeywordExtractor
	logger    *slog.Logger
}

// New wires the keyword extractor the scoring depends on.
func New(cfg Config, extractor ports.KeywordExtractor, logger *slog.Logger) *Deduplicator {
	if cfg.TitleTopK <= 0 {
		cfg.TitleTopK = DefaultConfig().TitleTopK
	}
	if cfg.ContentTopK <= 0 {
		cfg.ContentTopK = DefaultConfig().ContentTopK
	}
	return &Deduplicator{cfg: cfg, extractor: extractor, logger: logger}
}

var (
	bracketExpr = regexp.MustCompile(`[\[（(【][^\]）)】]*[\]）)】]`)
	suffixExpr  = regexp.MustCompile(`\s+[-–—|]\s+[^-–—|]+$`)
	spaceExpr   = regexp.MustCompile(`\s+`)
)

// normalizeTitle strips bracketed annotations and trailing "- source"
// suffixes, collapses punctuation to whitespace and lowercases.
func normalizeTitle(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	t = bracketExpr.ReplaceAllString(t, "")
	t = suffixExpr.ReplaceAllString(t, "")
	t = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, t)
	t = spaceExpr.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// Fingerprint derives the coarse bucket key for an article: the sorted
// top-K keywords of the normalized title, or the normalized title itself
// when extraction yields nothing.
func (d *Deduplicator) Fingerprint(article domain.Article) string {
	title := normalizeTitle(article.Title)
	kws := d.extractor.ExtractKeywords(title, d.cfg.TitleTopK)
	if len(kws) == 0 {
		return title
	}
	sorted := append([]string(nil), kws...)
	sort.Strings(sorted)
	return strings.Join(sorted, "_")
}

// Classify reports whether article duplicates a member of corpus. The
// fingerprint bucket, when populated, restricts the candidate scan;
// otherwise the full corpus is compared. A non-duplicate is registered in
// the index before returning so later articles in the same run see it.
func (d *Deduplicator) Classify(article domain.Article, index *Index, corpus []domain.Article) (bool, *domain.Article) {
	if normalizeTitle(article.Title) == "" {
		return false, nil
	}

	fingerprint := d.Fingerprint(article)

	candidates := corpus
	if ids := index.Lookup(fingerprint); len(ids) > 0 {
		inBucket := make(map[uuid.UUID]struct{}, len(ids))
		for _, id := range ids {
			inBucket[id] = struct{}{}
		}
		candidates = nil
		for i := range corpus {
			if _, ok := inBucket[corpus[i].ID]; ok {
				candidates = append(candidates, corpus[i])
			}
		}
	}

	for i := range candidates {
		score := d.similarity(article, candidates[i])
		if score >= d.cfg.SimilarityThreshold {
			d.debug("duplicate detected",
				"title", article.Title,
				"matched", candidates[i].Title,
				"score", score)
			return true, &candidates[i]
		}
	}

	index.Add(fingerprint, article.ID)
	return false, nil
}

// FilterDuplicates collapses in-batch and batch-vs-existing duplicates,
// keeping the first occurrence of each cluster in input order.
func (d *Deduplicator) FilterDuplicates(batch, existing []domain.Article) []domain.Article {
	index := NewIndex()
	corpus := append([]domain.Article(nil), existing...)
	unique := make([]domain.Article, 0, len(batch))

	for _, item := range batch {
		isDup, _ := d.Classify(item, index, corpus)
		if isDup {
			continue
		}
		unique = append(unique, item)
		corpus = append(corpus, item)
	}

	d.debug("deduplication finished", "unique", len(unique), "dropped", len(batch)-len(unique))
	return unique
}

// similarity scores two articles in [0,1]. Near-identical titles short-cut
// to 0.9 regardless of content.
func (d *Deduplicator) similarity(a, b domain.Article) float64 {
	t1 := normalizeTitle(a.Title)
	t2 := normalizeTitle(b.Title)

	var titleSim float64
	if utf8.RuneCountInString(t1) > 10 && utf8.RuneCountInString(t2) > 10 {
		titleSim = jaccard(
			d.extractor.ExtractKeywords(t1, d.cfg.TitleTopK),
			d.extractor.ExtractKeywords(t2, d.cfg.TitleTopK),
		)
	} else {
		titleSim = sequenceRatio(t1, t2)
	}

	if titleSim > 0.9 {
		return 0.9
	}

	var contentSim float64
	c1, c2 := a.Body(), b.Body()
	if c1 != "" && c2 != "" {
		contentSim = jaccard(
			d.extractor.ExtractKeywords(c1, d.cfg.ContentTopK),
			d.extractor.ExtractKeywords(c2, d.cfg.ContentTopK),
		)
	}

	return d.cfg.TitleWeight*titleSim + d.cfg.ContentWeight*contentSim
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, w := range a {
		setA[w] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, w := range b {
		setB[w] = struct{}{}
	}
	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// sequenceRatio is the character-sequence similarity used for titles too
// short for keyword extraction.
func sequenceRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	matcher := difflib.NewMatcher(splitRunes(a), splitRunes(b))
	return matcher.Ratio()
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func (d *Deduplicator) debug(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}
