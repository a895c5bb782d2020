package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"NewsIngest/internal/config"
	"NewsIngest/internal/domain"
	"NewsIngest/internal/source"
)

const feedItemLimit = 20

// FeedAdapter pulls one or more syndication feeds. A failure on one feed
// never aborts the others; partial results with a logged warning are
// acceptable, and only an all-feeds failure surfaces as an error.
type FeedAdapter struct {
	name   string
	feeds  []config.FeedConfig
	topics []string
	parser *gofeed.Parser
	logger *slog.Logger
}

var _ source.Adapter = (*FeedAdapter)(nil)

// NewFeed wires the feed list; topics restricts items by title keyword
// and may be empty to admit everything.
func NewFeed(name string, feeds []config.FeedConfig, topics []string, logger *slog.Logger) *FeedAdapter {
	return &FeedAdapter{
		name:   name,
		feeds:  feeds,
		topics: topics,
		parser: gofeed.NewParser(),
		logger: logger,
	}
}

// Name identifies the adapter in reports and the registry.
func (f *FeedAdapter) Name() string {
	return f.name
}

// FetchBatch walks the configured feeds in order, checking cancellation
// between feed URLs.
func (f *FeedAdapter) FetchBatch(ctx context.Context) ([]domain.Article, error) {
	var (
		all  []domain.Article
		errs []error
	)

	for _, feed := range f.feeds {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		parsed, err := f.parser.ParseURLWithContext(feed.URL, ctx)
		if err != nil {
			f.warn("feed fetch failed", "feed", feed.Name, "error", err)
			errs = append(errs, fmt.Errorf("feed %s: %w", feed.Name, err))
			continue
		}

		items := f.convertItems(parsed, feed)
		f.debug("feed fetched", "feed", feed.Name, "items", len(items))
		all = append(all, items...)
	}

	if len(all) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("all feeds failed: %w", errors.Join(errs...))
	}
	if len(errs) > 0 {
		f.warn("some feeds failed", "failed", len(errs), "fetched", len(all))
	}
	return all, nil
}

func (f *FeedAdapter) convertItems(parsed *gofeed.Feed, feed config.FeedConfig) []domain.Article {
	now := time.Now().UTC()
	items := parsed.Items
	if len(items) > feedItemLimit {
		items = items[:feedItemLimit]
	}

	articles := make([]domain.Article, 0, len(items))
	for _, item := range items {
		title := strings.TrimSpace(item.Title)
		if title == "" || !f.topicMatch(title) {
			continue
		}

		content := strings.TrimSpace(item.Content)
		summary := truncateRunes(stripHTML(item.Description), 300)

		var published *time.Time
		if item.PublishedParsed != nil {
			t := item.PublishedParsed.UTC()
			published = &t
		} else if item.UpdatedParsed != nil {
			t := item.UpdatedParsed.UTC()
			published = &t
		}

		category := ""
		if len(item.Categories) > 0 {
			category = item.Categories[0]
		}

		articles = append(articles, domain.Article{
			ID:          uuid.New(),
			Title:       title,
			URL:         strings.TrimSpace(item.Link),
			Summary:     summary,
			Content:     truncateRunes(stripHTML(content), 3000),
			Source:      feed.Name,
			Category:    category,
			Keywords:    strings.Join(item.Categories, ","),
			PublishedAt: published,
			CrawledAt:   now,
		})
	}
	return articles
}

func (f *FeedAdapter) topicMatch(title string) bool {
	if len(f.topics) == 0 {
		return true
	}
	for _, keyword := range f.topics {
		if strings.Contains(title, keyword) {
			return true
		}
	}
	return false
}

// stripHTML flattens feed summaries that carry markup.
func stripHTML(html string) string {
	if html == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}
	return strings.TrimSpace(doc.Text())
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func (f *FeedAdapter) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}

func (f *FeedAdapter) warn(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Warn(msg, args...)
	}
}
