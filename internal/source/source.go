package source

import (
	"context"

	"NewsIngest/internal/domain"
)

// Adapter is the capability every news backend exposes. Implementations
// return an error instead of panicking on network failure and honor
// context cancellation between individual network calls.
type Adapter interface {
	Name() string
	FetchBatch(ctx context.Context) ([]domain.Article, error)
}

// Registry keeps adapters in registration order. The orchestrator walks
// them in that fixed order so per-source results stay deterministic.
type Registry struct {
	ordered []Adapter
	byName  map[string]Adapter
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: map[string]Adapter{}}
}

// Register adds an adapter; re-registering a name replaces the adapter in
// place without changing its position.
func (r *Registry) Register(adapter Adapter) {
	if r.byName == nil {
		r.byName = map[string]Adapter{}
	}
	name := adapter.Name()
	if _, exists := r.byName[name]; exists {
		for i := range r.ordered {
			if r.ordered[i].Name() == name {
				r.ordered[i] = adapter
				break
			}
		}
	} else {
		r.ordered = append(r.ordered, adapter)
	}
	r.byName[name] = adapter
}

// All returns adapters in registration order.
func (r *Registry) All() []Adapter {
	return append([]Adapter(nil), r.ordered...)
}

// Names lists registered adapter names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ordered))
	for _, adapter := range r.ordered {
		names = append(names, adapter.Name())
	}
	return names
}
