package crawler

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"NewsIngest/internal/domain"
	"NewsIngest/internal/source"
)

type stubStrategy struct {
	name     string
	articles []domain.Article
	err      error
	calls    int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) FetchBatch(context.Context) ([]domain.Article, error) {
	s.calls++
	return s.articles, s.err
}

func someArticles(n int) []domain.Article {
	out := make([]domain.Article, n)
	for i := range out {
		out[i] = domain.Article{ID: uuid.New(), Title: "article"}
	}
	return out
}

func TestFallbackFirstNonEmptyWins(t *testing.T) {
	t.Parallel()

	primary := &stubStrategy{name: "scrape", articles: someArticles(2)}
	secondary := &stubStrategy{name: "feed", articles: someArticles(5)}
	adapter := NewFallback("site", []source.Adapter{primary, secondary}, nil)

	articles, err := adapter.FetchBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 2)
	require.Equal(t, 0, secondary.calls)
}

func TestFallbackEmptySuccessFallsThrough(t *testing.T) {
	t.Parallel()

	primary := &stubStrategy{name: "scrape"}
	secondary := &stubStrategy{name: "feed", articles: someArticles(3)}
	adapter := NewFallback("site", []source.Adapter{primary, secondary}, nil)

	articles, err := adapter.FetchBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 3)
	require.Equal(t, 1, primary.calls)
}

func TestFallbackErrorFallsThrough(t *testing.T) {
	t.Parallel()

	primary := &stubStrategy{name: "scrape", err: errors.New("blocked")}
	secondary := &stubStrategy{name: "feed", articles: someArticles(1)}
	adapter := NewFallback("site", []source.Adapter{primary, secondary}, nil)

	articles, err := adapter.FetchBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 1)
}

func TestFallbackAggregatesAllErrors(t *testing.T) {
	t.Parallel()

	primary := &stubStrategy{name: "scrape", err: errors.New("blocked")}
	secondary := &stubStrategy{name: "feed", err: errors.New("timeout")}
	adapter := NewFallback("site", []source.Adapter{primary, secondary}, nil)

	_, err := adapter.FetchBatch(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "scrape")
	require.Contains(t, err.Error(), "timeout")
}

func TestFallbackAllEmptyNoError(t *testing.T) {
	t.Parallel()

	adapter := NewFallback("site", []source.Adapter{
		&stubStrategy{name: "scrape"},
		&stubStrategy{name: "feed"},
	}, nil)

	articles, err := adapter.FetchBatch(context.Background())
	require.NoError(t, err)
	require.Empty(t, articles)
}

func TestFallbackCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	primary := &stubStrategy{name: "scrape", articles: someArticles(2)}
	adapter := NewFallback("site", []source.Adapter{primary}, nil)

	_, err := adapter.FetchBatch(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, primary.calls)
}
