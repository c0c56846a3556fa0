package appstate

import (
	"sync"

	"github.com/minutespa/minutespa/internal/errors"
	"github.com/minutespa/minutespa/pkg/medium"
)

// MainID is the id of the bus returned by Main.
const MainID = "main"

// Registry maps store ids to buses, creating one bus per id on first use.
// Buses are never removed.
type Registry struct {
	opts []Option
	med  medium.Medium

	mu    sync.Mutex
	buses map[string]*Bus
}

// NewRegistry creates a registry whose buses are built with opts.
func NewRegistry(opts ...Option) *Registry {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Registry{
		opts:  opts,
		med:   o.medium,
		buses: make(map[string]*Bus),
	}
}

// For returns the bus for id, creating it if needed.
func (r *Registry) For(id string) (*Bus, error) {
	if id == "" {
		return nil, errors.New("M001").
			WithSuggestion(`Pass a store id, e.g. appstate.For("main")`)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.buses[id]; ok {
		return b, nil
	}
	b := NewBus(id, r.opts...)
	r.buses[id] = b
	return b, nil
}

// IDs returns the ids of the buses created so far, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedKeys(r.buses)
}

// Close closes the registry's medium if it holds resources.
// Buses stay usable in memory; persistence calls fail after Close.
func (r *Registry) Close() error {
	return medium.Close(r.med)
}

// DefaultRegistry is the process-wide registry used by For and Main. It has
// no medium, so nothing persists unless a host replaces it at startup:
//
//	appstate.DefaultRegistry = appstate.NewRegistry(appstate.WithMedium(m))
var DefaultRegistry = NewRegistry()

// For returns the bus for id from DefaultRegistry.
func For(id string) (*Bus, error) {
	return DefaultRegistry.For(id)
}

// Main returns the "main" bus from DefaultRegistry.
func Main() *Bus {
	b, _ := DefaultRegistry.For(MainID)
	return b
}
