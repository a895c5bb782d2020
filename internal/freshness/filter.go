package freshness

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"NewsIngest/internal/domain"
)

// ErrNegativeMaxAge rejects policies with a negative freshness window.
var ErrNegativeMaxAge = errors.New("max age days must not be negative")

// Filter applies the age-based inclusion decision. The policy is shared
// process-wide configuration; reads and updates are synchronized so that
// reconfiguration never disturbs an in-flight run, which reads the policy
// once via Policy().
type Filter struct {
	mu     sync.RWMutex
	policy domain.FilterPolicy
	now    func() time.Time
	logger *slog.Logger
}

// PolicyStatus is the JSON view of the active policy.
type PolicyStatus struct {
	Enabled    bool      `json:"enabled"`
	MaxAgeDays int       `json:"max_age_days"`
	CutoffTime time.Time `json:"cutoff_time"`
}

// New builds a filter seeded with the given policy.
func New(policy domain.FilterPolicy, logger *slog.Logger) *Filter {
	if policy.MaxAgeDays < 0 {
		policy.MaxAgeDays = 0
	}
	return &Filter{policy: policy, now: time.Now, logger: logger}
}

// Policy returns a snapshot of the active policy. Callers filtering a
// batch read it once so the whole run is self-consistent.
func (f *Filter) Policy() domain.FilterPolicy {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.policy
}

// UpdatePolicy replaces the policy, taking effect on the next run.
// Invalid values are rejected, never clamped.
func (f *Filter) UpdatePolicy(maxAgeDays int, enabled bool) error {
	if maxAgeDays < 0 {
		return ErrNegativeMaxAge
	}
	f.mu.Lock()
	f.policy = domain.FilterPolicy{MaxAgeDays: maxAgeDays, Enabled: enabled}
	f.mu.Unlock()
	if f.logger != nil {
		f.logger.Info("freshness policy updated", "max_age_days", maxAgeDays, "enabled", enabled)
	}
	return nil
}

// Admit decides inclusion for a single article under a policy snapshot.
// An unknown publication date never excludes: losing articles to upstream
// date-parsing failures is worse than admitting a stale one.
func (f *Filter) Admit(article domain.Article, policy domain.FilterPolicy) bool {
	return admitAt(article, policy, f.now())
}

// FilterBatch applies Admit to every element, preserving input order.
// Filtering an already-filtered batch with the same policy is a no-op.
func (f *Filter) FilterBatch(batch []domain.Article, policy domain.FilterPolicy) []domain.Article {
	if !policy.Enabled {
		return batch
	}

	now := f.now()
	kept := make([]domain.Article, 0, len(batch))
	for _, article := range batch {
		if admitAt(article, policy, now) {
			kept = append(kept, article)
		}
	}

	if f.logger != nil && len(kept) < len(batch) {
		f.logger.Debug("freshness filter applied",
			"total", len(batch), "kept", len(kept), "removed", len(batch)-len(kept))
	}
	return kept
}

// Status reports the policy together with the derived cutoff.
func (f *Filter) Status() PolicyStatus {
	policy := f.Policy()
	return PolicyStatus{
		Enabled:    policy.Enabled,
		MaxAgeDays: policy.MaxAgeDays,
		CutoffTime: policy.CutoffTime(f.now().UTC()),
	}
}

func admitAt(article domain.Article, policy domain.FilterPolicy, now time.Time) bool {
	if !policy.Enabled {
		return true
	}
	if article.PublishedAt == nil {
		return true
	}
	return !article.PublishedAt.Before(policy.CutoffTime(now))
}
