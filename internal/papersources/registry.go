package papersources

import (
	"fmt"
	"sort"
	"sync"

	"github.com/helixir/paper-feed-service/internal/domain"
)

// Registry holds the available source strategies keyed by Kind.
// The composition root registers every strategy it can build and then selects
// the active one once. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sources map[Kind]Source
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[Kind]Source),
	}
}

// Register adds a source under kind, replacing any previous registration.
func (r *Registry) Register(kind Kind, source Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[kind] = source
}

// Get returns the source registered under kind, or nil.
func (r *Registry) Get(kind Kind) Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[kind]
}

// Select returns the source registered under kind. An unregistered kind is a
// validation error naming the kinds that are available.
func (r *Registry) Select(kind Kind) (Source, error) {
	if s := r.Get(kind); s != nil {
		return s, nil
	}
	return nil, domain.NewValidationError("paper_sources.active",
		fmt.Sprintf("source %q is not registered (available: %v)", kind, r.Kinds()))
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]Kind, 0, len(r.sources))
	for k := range r.sources {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
