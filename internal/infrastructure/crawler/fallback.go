package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"NewsIngest/internal/domain"
	"NewsIngest/internal/source"
)

// FallbackAdapter tries several retrieval strategies for one logical
// source in priority order. The first strategy that succeeds with at
// least one article wins; a strategy that succeeds empty falls through.
// When every strategy fails, the returned error aggregates all attempts.
type FallbackAdapter struct {
	name       string
	strategies []source.Adapter
	logger     *slog.Logger
}

var _ source.Adapter = (*FallbackAdapter)(nil)

// NewFallback wires the strategies in priority order.
func NewFallback(name string, strategies []source.Adapter, logger *slog.Logger) *FallbackAdapter {
	return &FallbackAdapter{name: name, strategies: strategies, logger: logger}
}

// Name identifies the logical source in reports and the registry.
func (f *FallbackAdapter) Name() string {
	return f.name
}

// FetchBatch walks the strategies, checking cancellation between them.
func (f *FallbackAdapter) FetchBatch(ctx context.Context) ([]domain.Article, error) {
	var errs []error

	for _, strategy := range f.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		articles, err := strategy.FetchBatch(ctx)
		if err != nil {
			if f.logger != nil {
				f.logger.Warn("strategy failed, trying next",
					"source", f.name, "strategy", strategy.Name(), "error", err)
			}
			errs = append(errs, fmt.Errorf("%s: %w", strategy.Name(), err))
			continue
		}
		if len(articles) > 0 {
			return articles, nil
		}
		if f.logger != nil {
			f.logger.Debug("strategy returned no articles, falling through",
				"source", f.name, "strategy", strategy.Name())
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("all strategies failed for %s: %w", f.name, errors.Join(errs...))
	}
	return nil, nil
}
