package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"NewsIngest/internal/domain"
)

// ErrSchedulerActive is returned by Start when the loop is already alive.
var ErrSchedulerActive = errors.New("scheduler already running")

const (
	// stopCheckInterval bounds how long Stop waits for the loop to
	// notice; the inter-tick sleep is chopped into pieces of this size.
	stopCheckInterval = 5 * time.Second
	// errorBackoff delays the next tick after an unexpected run error
	// so a persistent failure does not turn into a tight loop.
	errorBackoff = time.Minute
)

// Runner is the slice of the Manager the scheduler depends on.
type Runner interface {
	RunOnce(ctx context.Context) (domain.RunReport, error)
}

// Scheduler triggers ingestion passes on an interval from one background
// goroutine. Stop is idempotent and may be called from any goroutine.
type Scheduler struct {
	runner Runner
	logger *slog.Logger

	subInterval time.Duration
	backoff     time.Duration

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	enabled bool
}

// NewScheduler wires the runner; the auto-crawl toggle starts enabled.
func NewScheduler(runner Runner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:      runner,
		logger:      logger,
		subInterval: stopCheckInterval,
		backoff:     errorBackoff,
		enabled:     true,
	}
}

// Start spawns the loop. The first pass runs immediately, then every
// interval. Starting an active scheduler is an error, not a restart.
func (s *Scheduler) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %s", interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return ErrSchedulerActive
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(interval, s.stop, s.done)

	if s.logger != nil {
		s.logger.Info("scheduler started", "interval", interval)
	}
	return nil
}

// Stop halts the loop and waits for it to exit. Stopping a stopped
// scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stop == nil {
		s.mu.Unlock()
		return
	}
	close(s.stop)
	done := s.done
	s.stop = nil
	s.done = nil
	s.mu.Unlock()

	<-done
	if s.logger != nil {
		s.logger.Info("scheduler stopped")
	}
}

// Active reports whether the loop is alive.
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

// SetEnabled toggles whether ticks trigger runs; the loop itself keeps
// ticking so re-enabling needs no restart.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
}

// Enabled reports the auto-crawl toggle.
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *Scheduler) loop(interval time.Duration, stop, done chan struct{}) {
	defer close(done)

	for {
		if s.Enabled() {
			report, err := s.runner.RunOnce(context.Background())
			switch {
			case errors.Is(err, ErrAlreadyRunning):
				// A manual run is in flight; next tick picks up.
				if s.logger != nil {
					s.logger.Info("scheduled run skipped, ingestion already running")
				}
			case err != nil:
				if s.logger != nil {
					s.logger.Error("scheduled run failed", "error", err)
				}
				if !s.sleep(s.backoff, stop) {
					return
				}
			default:
				if s.logger != nil {
					s.logger.Info("scheduled run finished", "message", report.Message)
				}
			}
		}

		if !s.sleep(interval, stop) {
			return
		}
	}
}

// sleep waits for d in sub-interval steps, returning false when stopped.
func (s *Scheduler) sleep(d time.Duration, stop chan struct{}) bool {
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		step := s.subInterval
		if remaining < step {
			step = remaining
		}

		timer := time.NewTimer(step)
		select {
		case <-stop:
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}
