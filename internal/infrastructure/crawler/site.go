package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"NewsIngest/internal/config"
	"NewsIngest/internal/domain"
	"NewsIngest/internal/source"
)

const (
	defaultSitePages   = 3
	defaultSiteDetails = 10
)

// siteUserAgents is cycled across requests so a crawl does not present a
// single static client signature to the origin.
var siteUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
}

// SiteAdapter scrapes a single site's paginated list pages and then the
// per-article detail pages. Requests carry a randomized delay so a single
// origin is never hammered. A page yielding zero items ends pagination
// naturally; a fetch error stops the crawl and is reported.
type SiteAdapter struct {
	cfg    config.SiteConfig
	client *http.Client
	logger *slog.Logger

	// delay bounds between consecutive requests; tests zero them out.
	delayMin time.Duration
	delayMax time.Duration
	lastReq  time.Time
	reqCount int
}

var _ source.Adapter = (*SiteAdapter)(nil)

// NewSite wires an HTTP client; nil selects a 20s-timeout default.
func NewSite(cfg config.SiteConfig, client *http.Client, logger *slog.Logger) *SiteAdapter {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if cfg.Pages <= 0 {
		cfg.Pages = defaultSitePages
	}
	if cfg.Details <= 0 {
		cfg.Details = defaultSiteDetails
	}
	return &SiteAdapter{
		cfg:      cfg,
		client:   client,
		logger:   logger,
		delayMin: time.Second,
		delayMax: 3 * time.Second,
	}
}

// Name identifies the adapter in reports and the registry.
func (s *SiteAdapter) Name() string {
	return s.cfg.Name
}

// FetchBatch crawls list pages then enriches the leading items with
// detail content. Partial results are returned alongside any error so
// the orchestrator can keep what was already collected.
func (s *SiteAdapter) FetchBatch(ctx context.Context) ([]domain.Article, error) {
	var collected []domain.Article

	for page := 1; page <= s.cfg.Pages; page++ {
		if err := ctx.Err(); err != nil {
			return collected, err
		}

		pageURL := fmt.Sprintf("%s%s/page/%d", strings.TrimSuffix(s.cfg.BaseURL, "/"), s.cfg.ListPath, page)
		doc, err := s.fetchDocument(ctx, pageURL)
		if err != nil {
			return collected, fmt.Errorf("list page %d: %w", page, err)
		}

		items := s.extractList(doc)
		if len(items) == 0 {
			s.debug("empty list page, stopping pagination", "page", page)
			break
		}

		s.debug("list page crawled", "page", page, "items", len(items))
		collected = append(collected, items...)
	}

	details := s.cfg.Details
	if details > len(collected) {
		details = len(collected)
	}
	for i := 0; i < details; i++ {
		if err := ctx.Err(); err != nil {
			return collected, err
		}
		if err := s.enrichDetail(ctx, &collected[i]); err != nil {
			s.warn("detail fetch failed", "url", collected[i].URL, "error", err)
		}
	}

	return collected, nil
}

func (s *SiteAdapter) extractList(doc *goquery.Document) []domain.Article {
	now := time.Now().UTC()
	var items []domain.Article

	doc.Find("article.post").Each(func(_ int, article *goquery.Selection) {
		link := article.Find(".entry-title a").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		if title == "" || href == "" {
			return
		}
		if !strings.HasPrefix(href, "http") {
			href = strings.TrimSuffix(s.cfg.BaseURL, "/") + href
		}

		var published *time.Time
		if dateText := strings.TrimSpace(article.Find(".posted-date").First().Text()); dateText != "" {
			if parsed, err := time.Parse("2006-01-02", dateText); err == nil {
				t := parsed.UTC()
				published = &t
			} else {
				s.debug("unparsable list date", "date", dateText)
			}
		}

		summary := truncateRunes(strings.TrimSpace(article.Find(".entry-content").First().Text()), 200)

		category := s.cfg.Category
		if cat := strings.TrimSpace(article.Find(".cat-links a").First().Text()); cat != "" {
			category = cat
		}

		items = append(items, domain.Article{
			ID:          uuid.New(),
			Title:       title,
			URL:         href,
			Summary:     summary,
			Source:      s.cfg.Name,
			Category:    category,
			PublishedAt: published,
			CrawledAt:   now,
		})
	})

	return items
}

func (s *SiteAdapter) enrichDetail(ctx context.Context, article *domain.Article) error {
	doc, err := s.fetchDocument(ctx, article.URL)
	if err != nil {
		return err
	}

	content := doc.Find(".entry-content").First()
	content.Find(".sharedaddy, .jp-relatedposts, script, .ads-area").Remove()

	var paragraphs []string
	content.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	article.Content = truncateRunes(strings.Join(paragraphs, "\n\n"), 3000)

	var tags []string
	doc.Find(".tags-links a").Each(func(_ int, tag *goquery.Selection) {
		if text := strings.TrimSpace(tag.Text()); text != "" {
			tags = append(tags, text)
		}
	})
	if len(tags) > 0 {
		article.Keywords = strings.Join(tags, ",")
	}

	if article.PublishedAt == nil {
		if dateText := strings.TrimSpace(doc.Find(".posted-date").First().Text()); dateText != "" {
			if parsed, err := time.Parse("2006-01-02", dateText); err == nil {
				t := parsed.UTC()
				article.PublishedAt = &t
			}
		}
	}

	return nil
}

func (s *SiteAdapter) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := s.waitJitter(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.nextUserAgent())
	req.Header.Set("Accept-Language", "zh-TW,zh;q=0.9,en;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", s.cfg.Name, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// nextUserAgent rotates through the browser signatures. The adapter is
// owned by one run at a time, so a plain counter suffices.
func (s *SiteAdapter) nextUserAgent() string {
	ua := siteUserAgents[s.reqCount%len(siteUserAgents)]
	s.reqCount++
	return ua
}

// waitJitter enforces a randomized inter-request gap, abortable via ctx.
func (s *SiteAdapter) waitJitter(ctx context.Context) error {
	if s.delayMax <= 0 {
		return nil
	}

	delay := s.delayMin
	if span := s.delayMax - s.delayMin; span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}

	elapsed := time.Since(s.lastReq)
	if elapsed >= delay {
		s.lastReq = time.Now()
		return nil
	}

	timer := time.NewTimer(delay - elapsed)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	s.lastReq = time.Now()
	return nil
}

func (s *SiteAdapter) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *SiteAdapter) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
