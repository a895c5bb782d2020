package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"NewsIngest/internal/dedup"
	"NewsIngest/internal/domain"
	"NewsIngest/internal/freshness"
	"NewsIngest/internal/ports"
	"NewsIngest/internal/source"
)

// ErrAlreadyRunning is returned by RunOnce when a pass is in flight.
// Callers see it unchanged; it is the single-flight contract, not a
// failure of the running pass.
var ErrAlreadyRunning = errors.New("ingestion run already in progress")

// ManagerDeps wires all collaborators into the orchestrator.
type ManagerDeps struct {
	Adapters     []source.Adapter
	Fallback     source.Adapter
	Dedup        *dedup.Deduplicator
	Freshness    *freshness.Filter
	Store        ports.ArticleStore
	Logger       *slog.Logger
	RecentWindow int
}

// Manager runs ingestion passes across all registered adapters, isolating
// per-source failures, and owns the process-wide run state. Construct one
// per process and hand it to the HTTP layer and the scheduler.
type Manager struct {
	adapters     []source.Adapter
	fallback     source.Adapter
	dedup        *dedup.Deduplicator
	fresh        *freshness.Filter
	store        ports.ArticleStore
	logger       *slog.Logger
	recentWindow int

	sched *Scheduler

	mu      sync.Mutex
	running bool
	lastRun time.Time
	hasRun  bool
	stats   domain.RunStats
}

// Status is the read-only view served to the HTTP layer.
type Status struct {
	IsRunning        bool                   `json:"is_running"`
	SchedulerActive  bool                   `json:"scheduler_active"`
	AutoCrawlEnabled bool                   `json:"auto_crawl_enabled"`
	LastRunTime      *time.Time             `json:"last_run_time"`
	Filter           freshness.PolicyStatus `json:"filter"`
	Stats            domain.RunStats        `json:"stats"`
	Sources          []string               `json:"sources"`
}

// NewManager constructs the orchestrator and its background scheduler.
func NewManager(deps ManagerDeps) *Manager {
	if deps.RecentWindow <= 0 {
		deps.RecentWindow = 200
	}
	m := &Manager{
		adapters:     deps.Adapters,
		fallback:     deps.Fallback,
		dedup:        deps.Dedup,
		fresh:        deps.Freshness,
		store:        deps.Store,
		logger:       deps.Logger,
		recentWindow: deps.RecentWindow,
	}
	m.sched = NewScheduler(m, deps.Logger)
	return m
}

// RunOnce executes a single ingestion pass: fetch from every adapter in
// registration order, deduplicate, apply the freshness policy, persist.
// A second concurrent caller gets ErrAlreadyRunning immediately.
func (m *Manager) RunOnce(ctx context.Context) (domain.RunReport, error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return domain.RunReport{}, ErrAlreadyRunning
	}
	m.running = true
	m.mu.Unlock()

	started := time.Now().UTC()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.lastRun = started
		m.hasRun = true
		m.mu.Unlock()
	}()

	m.info("ingestion run started", "sources", len(m.adapters))

	var (
		results     []domain.SourceResult
		allFetched  []domain.Article
		interrupted bool
	)

	for _, adapter := range m.adapters {
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		result, articles := m.fetchFrom(ctx, adapter)
		results = append(results, result)
		allFetched = append(allFetched, articles...)
	}
	if ctx.Err() != nil {
		interrupted = true
	}

	// Last resort: nothing fetched and a designated fallback exists.
	if len(allFetched) == 0 && !interrupted && m.fallback != nil && !m.adapterRegistered(m.fallback.Name()) {
		m.info("no articles fetched, invoking fallback source", "source", m.fallback.Name())
		result, articles := m.fetchFrom(ctx, m.fallback)
		results = append(results, result)
		allFetched = append(allFetched, articles...)
	}

	var recent []domain.Article
	if m.store != nil && !interrupted {
		var err error
		recent, err = m.store.Recent(ctx, m.recentWindow)
		if err != nil {
			m.error("load recent articles for dedup", "error", err)
			recent = nil
		}
	}

	unique := m.dedup.FilterDuplicates(allFetched, recent)
	admitted := m.fresh.FilterBatch(unique, m.fresh.Policy())

	persisted, skipped := 0, 0
	if m.store != nil {
		for i := range admitted {
			if ctx.Err() != nil {
				interrupted = true
				break
			}
			created, err := m.store.Upsert(ctx, admitted[i])
			if err != nil {
				skipped++
				m.error("persist article", "title", admitted[i].Title, "error", err)
				continue
			}
			if created {
				persisted++
			}
		}
	}

	m.mu.Lock()
	m.stats.Runs++
	m.stats.TotalPersisted += persisted
	m.mu.Unlock()

	message := fmt.Sprintf("processed %d articles, admitted %d, persisted %d new", len(allFetched), len(admitted), persisted)
	if skipped > 0 {
		message += fmt.Sprintf(", %d failed to persist", skipped)
	}
	if interrupted {
		message = "run interrupted by deadline: " + message
	}

	report := domain.RunReport{
		Status:          domain.StatusSuccess,
		Message:         message,
		StartedAt:       started,
		DurationSeconds: time.Since(started).Seconds(),
		Results:         results,
		TotalFetched:    len(allFetched),
		TotalAdmitted:   len(admitted),
		TotalPersisted:  persisted,
	}

	m.info("ingestion run finished",
		"fetched", report.TotalFetched,
		"admitted", report.TotalAdmitted,
		"persisted", report.TotalPersisted,
		"duration", time.Since(started).Round(time.Millisecond))
	return report, nil
}

// fetchFrom isolates one adapter: an error is recorded, never fatal to
// the run. Articles an adapter returned alongside an error are kept.
func (m *Manager) fetchFrom(ctx context.Context, adapter source.Adapter) (domain.SourceResult, []domain.Article) {
	articles, err := adapter.FetchBatch(ctx)
	if err != nil {
		m.error("source fetch failed", "source", adapter.Name(), "error", err)
		m.bumpFetch(false)
		return domain.SourceResult{
			Source:    adapter.Name(),
			Success:   false,
			NewsCount: len(articles),
			Message:   fmt.Sprintf("fetch failed: %v", err),
			Err:       err,
		}, articles
	}

	m.bumpFetch(true)
	return domain.SourceResult{
		Source:    adapter.Name(),
		Success:   true,
		NewsCount: len(articles),
		Message:   fmt.Sprintf("fetched %d articles", len(articles)),
	}, articles
}

func (m *Manager) adapterRegistered(name string) bool {
	for _, adapter := range m.adapters {
		if adapter.Name() == name {
			return true
		}
	}
	return false
}

// UpdatePolicy reconfigures the freshness window; it takes effect on the
// next run, never on one in flight.
func (m *Manager) UpdatePolicy(maxAgeDays int, enabled bool) error {
	return m.fresh.UpdatePolicy(maxAgeDays, enabled)
}

// StartScheduler begins background ingestion on the given interval.
func (m *Manager) StartScheduler(interval time.Duration) error {
	return m.sched.Start(interval)
}

// StopScheduler halts background ingestion; calling it while stopped is
// a no-op.
func (m *Manager) StopScheduler() {
	m.sched.Stop()
}

// SetAutoCrawl toggles whether scheduler ticks trigger runs.
func (m *Manager) SetAutoCrawl(enabled bool) {
	m.sched.SetEnabled(enabled)
}

// Status snapshots the run state for the HTTP layer.
func (m *Manager) Status() Status {
	m.mu.Lock()
	var lastRun *time.Time
	if m.hasRun {
		t := m.lastRun
		lastRun = &t
	}
	stats := m.stats
	running := m.running
	m.mu.Unlock()

	names := make([]string, 0, len(m.adapters)+1)
	for _, adapter := range m.adapters {
		names = append(names, adapter.Name())
	}
	if m.fallback != nil {
		names = append(names, m.fallback.Name())
	}

	return Status{
		IsRunning:        running,
		SchedulerActive:  m.sched.Active(),
		AutoCrawlEnabled: m.sched.Enabled(),
		LastRunTime:      lastRun,
		Filter:           m.fresh.Status(),
		Stats:            stats,
		Sources:          names,
	}
}

// Close stops background work. Safe to call more than once.
func (m *Manager) Close() {
	m.sched.Stop()
}

func (m *Manager) bumpFetch(success bool) {
	m.mu.Lock()
	if success {
		m.stats.SuccessfulFetches++
	} else {
		m.stats.FailedFetches++
	}
	m.mu.Unlock()
}

func (m *Manager) info(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Info(msg, args...)
	}
}

func (m *Manager) error(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Error(msg, args...)
	}
}
