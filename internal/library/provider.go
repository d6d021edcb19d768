package library

import (
	"context"
	"errors"
	"sync"
)

// Common errors returned by the provider registry.
var (
	ErrEmptyProviderID     = errors.New("provider id is empty")
	ErrDuplicateProviderID = errors.New("provider id already registered")
)

// Metadata is the fully resolved project metadata handed to providers
// during a rebuild. The cache only passes it through; resolving it is
// the sync engine's concern.
type Metadata struct {
	// WorkspaceRoot is the absolute path of the project workspace.
	WorkspaceRoot string

	// SyncGeneration counts completed full syncs, starting at 1.
	SyncGeneration uint64

	// Attrs carries build-system specific values providers may need.
	Attrs map[string]string
}

// Provider discovers the files belonging to one synthetic library.
// Implementations must be safe for repeated DiscoverFiles calls; the
// cache invokes them once per full rebuild.
type Provider interface {
	// ID returns the stable identity used to key the snapshot.
	ID() ProviderID

	// Name returns the human-readable library name.
	Name() string

	// DiscoverFiles returns the file roots this provider contributes
	// under the given metadata. An empty result means the provider
	// contributes no library this pass.
	DiscoverFiles(ctx context.Context, md Metadata) ([]string, error)
}

// Registry is an explicit, statically composed provider list.
// Registration normally happens once at startup; the registry is still
// safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	order     []ProviderID
	providers map[ProviderID]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[ProviderID]Provider),
	}
}

// Register adds a provider. Registration order is preserved for
// rebuild iteration.
func (r *Registry) Register(p Provider) error {
	id := p.ID()
	if id == "" {
		return ErrEmptyProviderID
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[id]; ok {
		return ErrDuplicateProviderID
	}
	r.providers[id] = p
	r.order = append(r.order, id)
	return nil
}

// Get returns the provider with the given ID, or nil if unregistered.
func (r *Registry) Get(id ProviderID) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[id]
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// Providers returns the registered providers in registration order.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.providers[id])
	}
	return out
}
