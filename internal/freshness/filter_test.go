package freshness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"NewsIngest/internal/domain"
)

func fixedFilter(policy domain.FilterPolicy, now time.Time) *Filter {
	f := New(policy, nil)
	f.now = func() time.Time { return now }
	return f
}

func published(t time.Time) *time.Time {
	return &t
}

func TestAdmitWithinWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	f := fixedFilter(domain.FilterPolicy{MaxAgeDays: 7, Enabled: true}, now)
	policy := f.Policy()

	require.True(t, f.Admit(domain.Article{PublishedAt: published(now.AddDate(0, 0, -3))}, policy))
	require.False(t, f.Admit(domain.Article{PublishedAt: published(now.AddDate(0, 0, -10))}, policy))
	require.True(t, f.Admit(domain.Article{PublishedAt: published(now.AddDate(0, 0, -7))}, policy))
}

func TestAdmitUnknownPublicationDate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	f := fixedFilter(domain.FilterPolicy{MaxAgeDays: 7, Enabled: true}, now)

	require.True(t, f.Admit(domain.Article{PublishedAt: nil}, f.Policy()))
}

func TestFilterBatchDisabledIsIdentity(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	f := fixedFilter(domain.FilterPolicy{MaxAgeDays: 7, Enabled: false}, now)

	batch := []domain.Article{
		{Title: "old", PublishedAt: published(now.AddDate(0, 0, -30))},
		{Title: "new", PublishedAt: published(now)},
	}
	require.Equal(t, batch, f.FilterBatch(batch, f.Policy()))
}

func TestFilterBatchPreservesOrder(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	f := fixedFilter(domain.FilterPolicy{MaxAgeDays: 7, Enabled: true}, now)

	batch := []domain.Article{
		{Title: "a", PublishedAt: published(now.AddDate(0, 0, -1))},
		{Title: "b", PublishedAt: published(now.AddDate(0, 0, -10))},
		{Title: "c", PublishedAt: nil},
		{Title: "d", PublishedAt: published(now.AddDate(0, 0, -2))},
	}

	kept := f.FilterBatch(batch, f.Policy())
	require.Len(t, kept, 3)
	require.Equal(t, "a", kept[0].Title)
	require.Equal(t, "c", kept[1].Title)
	require.Equal(t, "d", kept[2].Title)
}

func TestFilterBatchIdempotent(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	f := fixedFilter(domain.FilterPolicy{MaxAgeDays: 7, Enabled: true}, now)

	batch := []domain.Article{
		{Title: "a", PublishedAt: published(now.AddDate(0, 0, -1))},
		{Title: "b", PublishedAt: published(now.AddDate(0, 0, -10))},
	}

	once := f.FilterBatch(batch, f.Policy())
	twice := f.FilterBatch(once, f.Policy())
	require.Equal(t, once, twice)
}

func TestUpdatePolicy(t *testing.T) {
	t.Parallel()

	f := New(domain.FilterPolicy{MaxAgeDays: 7, Enabled: true}, nil)

	require.ErrorIs(t, f.UpdatePolicy(-1, true), ErrNegativeMaxAge)
	require.Equal(t, domain.FilterPolicy{MaxAgeDays: 7, Enabled: true}, f.Policy())

	require.NoError(t, f.UpdatePolicy(30, false))
	require.Equal(t, domain.FilterPolicy{MaxAgeDays: 30, Enabled: false}, f.Policy())
}

func TestStatusReportsCutoff(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	f := fixedFilter(domain.FilterPolicy{MaxAgeDays: 7, Enabled: true}, now)

	status := f.Status()
	require.True(t, status.Enabled)
	require.Equal(t, 7, status.MaxAgeDays)
	require.Equal(t, now.AddDate(0, 0, -7), status.CutoffTime)
}
