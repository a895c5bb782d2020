package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"NewsIngest/internal/dedup"
	"NewsIngest/internal/domain"
	"NewsIngest/internal/freshness"
	"NewsIngest/internal/keywords"
	"NewsIngest/internal/source"
)

type stubAdapter struct {
	name     string
	articles []domain.Article
	err      error
	calls    int
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) FetchBatch(context.Context) ([]domain.Article, error) {
	s.calls++
	return s.articles, s.err
}

// gateAdapter blocks inside FetchBatch until released, so tests can hold
// a run in flight.
type gateAdapter struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gateAdapter) Name() string { return "gated" }

func (g *gateAdapter) FetchBatch(context.Context) ([]domain.Article, error) {
	g.entered <- struct{}{}
	<-g.release
	return distinctArticles("g", 1), nil
}

// cancellingAdapter completes its fetch and then cancels the run
// context, as a deadline firing mid-run would.
type cancellingAdapter struct {
	name     string
	articles []domain.Article
	cancel   context.CancelFunc
}

func (c *cancellingAdapter) Name() string { return c.name }

func (c *cancellingAdapter) FetchBatch(context.Context) ([]domain.Article, error) {
	c.cancel()
	return c.articles, nil
}

type stubStore struct {
	mu         sync.Mutex
	recent     []domain.Article
	failTitles map[string]bool
	upserts    []string
}

func (s *stubStore) Upsert(_ context.Context, article domain.Article) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTitles[article.Title] {
		return false, errors.New("insert failed")
	}
	s.upserts = append(s.upserts, article.Title)
	return true, nil
}

func (s *stubStore) Recent(context.Context, int) ([]domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recent, nil
}

// distinctArticles builds articles whose titles never collide in the
// deduplicator.
func distinctArticles(prefix string, n int) []domain.Article {
	out := make([]domain.Article, n)
	for i := range out {
		out[i] = domain.Article{
			ID:    uuid.New(),
			Title: prefix + strings.Repeat(string(rune('a'+i)), 9),
		}
	}
	return out
}

func newTestManager(t *testing.T, deps ManagerDeps) *Manager {
	t.Helper()
	if deps.Dedup == nil {
		deps.Dedup = dedup.New(dedup.DefaultConfig(), keywords.New(), nil)
	}
	if deps.Freshness == nil {
		deps.Freshness = freshness.New(domain.FilterPolicy{Enabled: false}, nil)
	}
	m := NewManager(deps)
	t.Cleanup(m.Close)
	return m
}

func TestRunOnceSingleFlight(t *testing.T) {
	t.Parallel()

	gate := &gateAdapter{
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	m := newTestManager(t, ManagerDeps{Adapters: []source.Adapter{gate}})

	firstDone := make(chan error, 1)
	go func() {
		_, err := m.RunOnce(context.Background())
		firstDone <- err
	}()

	<-gate.entered
	_, err := m.RunOnce(context.Background())
	require.ErrorIs(t, err, ErrAlreadyRunning)
	require.True(t, m.Status().IsRunning)

	close(gate.release)
	require.NoError(t, <-firstDone)
	require.False(t, m.Status().IsRunning)

	// The flag is released, a fresh run proceeds.
	_, err = m.RunOnce(context.Background())
	require.NoError(t, err)
}

func TestRunOnceIsolatesSourceFailure(t *testing.T) {
	t.Parallel()

	a := &stubAdapter{name: "來源A", articles: distinctArticles("a", 5)}
	b := &stubAdapter{name: "來源B", err: errors.New("connection refused")}
	c := &stubAdapter{name: "來源C", articles: distinctArticles("c", 3)}
	m := newTestManager(t, ManagerDeps{Adapters: []source.Adapter{a, b, c}})

	report, err := m.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Results, 3)
	require.Equal(t, "來源A", report.Results[0].Source)
	require.True(t, report.Results[0].Success)
	require.Equal(t, 5, report.Results[0].NewsCount)
	require.False(t, report.Results[1].Success)
	require.Contains(t, report.Results[1].Message, "connection refused")
	require.True(t, report.Results[2].Success)

	require.Equal(t, 8, report.TotalFetched)
	require.Equal(t, 8, report.TotalAdmitted)
	require.Equal(t, domain.StatusSuccess, report.Status)
}

func TestRunOnceFallbackWhenNothingFetched(t *testing.T) {
	t.Parallel()

	a := &stubAdapter{name: "來源A"}
	b := &stubAdapter{name: "來源B", err: errors.New("timeout")}
	fallback := &stubAdapter{name: "模擬", articles: distinctArticles("f", 2)}
	m := newTestManager(t, ManagerDeps{
		Adapters: []source.Adapter{a, b},
		Fallback: fallback,
	})

	report, err := m.RunOnce(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, fallback.calls)
	require.Len(t, report.Results, 3)
	require.Equal(t, "模擬", report.Results[2].Source)
	require.Equal(t, 2, report.TotalFetched)
}

func TestRunOnceFallbackSkippedWhenFetched(t *testing.T) {
	t.Parallel()

	a := &stubAdapter{name: "來源A", articles: distinctArticles("a", 1)}
	fallback := &stubAdapter{name: "模擬", articles: distinctArticles("f", 2)}
	m := newTestManager(t, ManagerDeps{
		Adapters: []source.Adapter{a},
		Fallback: fallback,
	})

	report, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, fallback.calls)
	require.Equal(t, 1, report.TotalFetched)
}

func TestRunOncePersistsThroughFailures(t *testing.T) {
	t.Parallel()

	existing := domain.Article{ID: uuid.New(), Title: "金管會發布新規"}
	store := &stubStore{
		recent:     []domain.Article{existing},
		failTitles: map[string]bool{"壽險保費成長": true},
	}
	a := &stubAdapter{name: "來源A", articles: []domain.Article{
		{ID: uuid.New(), Title: "金管會發布新規 - 某報"},
		{ID: uuid.New(), Title: "壽險保費成長"},
		{ID: uuid.New(), Title: "產險氣候商品"},
	}}
	m := newTestManager(t, ManagerDeps{
		Adapters: []source.Adapter{a},
		Store:    store,
	})

	report, err := m.RunOnce(context.Background())
	require.NoError(t, err)

	require.Equal(t, 3, report.TotalFetched)
	require.Equal(t, 2, report.TotalAdmitted)
	require.Equal(t, 1, report.TotalPersisted)
	require.Contains(t, report.Message, "1 failed to persist")
	require.Equal(t, []string{"產險氣候商品"}, store.upserts)
}

func TestRunOnceDeadlineKeepsPartialProgress(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	first := &cancellingAdapter{
		name:     "來源A",
		articles: distinctArticles("a", 2),
		cancel:   cancel,
	}
	second := &stubAdapter{name: "來源B", articles: distinctArticles("b", 3)}
	store := &stubStore{}
	m := newTestManager(t, ManagerDeps{
		Adapters: []source.Adapter{first, second},
		Store:    store,
	})

	report, err := m.RunOnce(ctx)
	require.NoError(t, err)

	// The source that completed before the deadline is kept; the next
	// one never runs.
	require.Len(t, report.Results, 1)
	require.Equal(t, "來源A", report.Results[0].Source)
	require.Equal(t, 0, second.calls)
	require.Equal(t, 2, report.TotalFetched)
	require.Equal(t, 2, report.TotalAdmitted)
	require.Empty(t, store.upserts)
	require.Contains(t, report.Message, "interrupted")
	require.Equal(t, domain.StatusSuccess, report.Status)

	// The single-flight flag is released and a fresh run proceeds.
	require.False(t, m.Status().IsRunning)
	_, err = m.RunOnce(context.Background())
	require.NoError(t, err)
}

func TestRunOnceDeadlineSuppressesFallback(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	first := &cancellingAdapter{name: "來源A", cancel: cancel}
	fallback := &stubAdapter{name: "模擬", articles: distinctArticles("f", 2)}
	m := newTestManager(t, ManagerDeps{
		Adapters: []source.Adapter{first},
		Fallback: fallback,
	})

	report, err := m.RunOnce(ctx)
	require.NoError(t, err)

	require.Equal(t, 0, fallback.calls)
	require.Len(t, report.Results, 1)
	require.Zero(t, report.TotalFetched)
	require.Contains(t, report.Message, "interrupted")
}

func TestRunOnceAccumulatesStats(t *testing.T) {
	t.Parallel()

	a := &stubAdapter{name: "來源A", articles: distinctArticles("a", 2)}
	b := &stubAdapter{name: "來源B", err: errors.New("down")}
	m := newTestManager(t, ManagerDeps{Adapters: []source.Adapter{a, b}})

	_, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	_, err = m.RunOnce(context.Background())
	require.NoError(t, err)

	status := m.Status()
	require.Equal(t, 2, status.Stats.Runs)
	require.Equal(t, 2, status.Stats.SuccessfulFetches)
	require.Equal(t, 2, status.Stats.FailedFetches)
	require.NotNil(t, status.LastRunTime)
}

func TestStatusListsSources(t *testing.T) {
	t.Parallel()

	a := &stubAdapter{name: "來源A"}
	fallback := &stubAdapter{name: "模擬"}
	m := newTestManager(t, ManagerDeps{
		Adapters: []source.Adapter{a},
		Fallback: fallback,
	})

	status := m.Status()
	require.Equal(t, []string{"來源A", "模擬"}, status.Sources)
	require.Nil(t, status.LastRunTime)
	require.False(t, status.IsRunning)
}

func TestManagerUpdatePolicy(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, ManagerDeps{})
	require.Error(t, m.UpdatePolicy(-1, true))
	require.NoError(t, m.UpdatePolicy(14, true))
	require.Equal(t, 14, m.Status().Filter.MaxAgeDays)
}
