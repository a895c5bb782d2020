package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"NewsIngest/internal/domain"
	"NewsIngest/internal/ports"
)

const (
	defaultCategory = "其他"
	defaultSource   = "未知來源"
)

// Open dials Postgres through database/sql with the pq driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// PostgresStore persists admitted articles. Every Upsert runs in its own
// transaction so one bad article never rolls back the rest of a run.
type PostgresStore struct {
	db     *sql.DB
	sb     sq.StatementBuilderType
	logger *slog.Logger
}

var _ ports.ArticleStore = (*PostgresStore)(nil)

// NewPostgresStore wires a sql.DB implementation.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		sb:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger: logger,
	}
}

// Upsert inserts the article unless a row with the same URL (or, lacking
// a URL, the same exact title) already exists. Missing category and
// source reference rows are created on the fly.
func (s *PostgresStore) Upsert(ctx context.Context, article domain.Article) (bool, error) {
	if s.db == nil {
		return false, fmt.Errorf("store is not configured")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	exists, err := s.articleExists(ctx, tx, article)
	if err != nil {
		return false, err
	}
	if exists {
		s.debug("article already stored, skipping", "title", article.Title)
		return false, nil
	}

	categoryID, err := s.ensureRef(ctx, tx, "news_categories", orDefault(article.Category, defaultCategory))
	if err != nil {
		return false, fmt.Errorf("ensure category: %w", err)
	}
	sourceID, err := s.ensureRef(ctx, tx, "news_sources", orDefault(article.Source, defaultSource))
	if err != nil {
		return false, fmt.Errorf("ensure source: %w", err)
	}

	crawled := article.CrawledAt
	if crawled.IsZero() {
		crawled = time.Now().UTC()
	}

	var published sql.NullTime
	if article.PublishedAt != nil {
		published = sql.NullTime{Time: *article.PublishedAt, Valid: true}
	}

	_, err = s.sb.Insert("news").
		Columns("title", "content", "summary", "url", "source_id", "category_id",
			"published_date", "crawled_date", "keywords", "status").
		Values(article.Title, article.Content, article.Summary, article.URL,
			sourceID, categoryID, published, crawled, article.Keywords, "active").
		RunWith(tx).
		ExecContext(ctx)
	if err != nil {
		return false, fmt.Errorf("insert news: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// Recent returns the newest stored articles by crawl time, the corpus
// the deduplicator compares a run against.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]domain.Article, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 200
	}

	rows, err := s.sb.Select("n.title", "n.url", "n.summary", "n.content",
		"src.name", "cat.name", "n.published_date", "n.crawled_date", "n.keywords").
		From("news n").
		LeftJoin("news_sources src ON src.id = n.source_id").
		LeftJoin("news_categories cat ON cat.id = n.category_id").
		OrderBy("n.crawled_date DESC").
		Limit(uint64(limit)).
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		var (
			a          domain.Article
			sourceName sql.NullString
			category   sql.NullString
			published  sql.NullTime
			crawled    sql.NullTime
		)
		if err := rows.Scan(&a.Title, &a.URL, &a.Summary, &a.Content,
			&sourceName, &category, &published, &crawled, &a.Keywords); err != nil {
			return nil, fmt.Errorf("scan recent row: %w", err)
		}

		a.ID = uuid.New()
		a.Source = sourceName.String
		a.Category = category.String
		if published.Valid {
			t := published.Time
			a.PublishedAt = &t
		}
		if crawled.Valid {
			a.CrawledAt = crawled.Time
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent rows: %w", err)
	}
	return articles, nil
}

// articleExists probes by URL first, then by exact title when no URL is
// available.
func (s *PostgresStore) articleExists(ctx context.Context, tx *sql.Tx, article domain.Article) (bool, error) {
	where := sq.Eq{"url": article.URL}
	if article.URL == "" {
		where = sq.Eq{"title": article.Title}
	}

	var id int64
	err := s.sb.Select("id").From("news").Where(where).Limit(1).
		RunWith(tx).
		QueryRowContext(ctx).
		Scan(&id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	default:
		return false, fmt.Errorf("probe existing article: %w", err)
	}
}

func (s *PostgresStore) ensureRef(ctx context.Context, tx *sql.Tx, table, name string) (int64, error) {
	var id int64
	err := s.sb.Select("id").From(table).Where(sq.Eq{"name": name}).Limit(1).
		RunWith(tx).
		QueryRowContext(ctx).
		Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup %s: %w", table, err)
	}

	err = s.sb.Insert(table).
		Columns("name", "description").
		Values(name, fmt.Sprintf("%s相關", name)).
		Suffix("RETURNING id").
		RunWith(tx).
		QueryRowContext(ctx).
		Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create %s row: %w", table, err)
	}
	return id, nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func (s *PostgresStore) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
