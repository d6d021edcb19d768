package cache

import (
	"sort"
	"sync/atomic"

	"github.com/tmcrae/synthlib/internal/library"
)

// Snapshot is an immutable mapping from provider identity to library
// record, assembled wholesale by one rebuild pass. The mapping itself
// is never mutated after construction; only the records it contains
// are, by the deletion and restoration paths.
type Snapshot struct {
	libraries map[library.ProviderID]*library.Library
}

// emptySnapshot is the initial published value.
var emptySnapshot = &Snapshot{libraries: map[library.ProviderID]*library.Library{}}

// NewSnapshot builds a snapshot from the given records.
func NewSnapshot(libs []*library.Library) *Snapshot {
	m := make(map[library.ProviderID]*library.Library, len(libs))
	for _, l := range libs {
		m[l.ID()] = l
	}
	return &Snapshot{libraries: m}
}

// Get returns the record for a provider identity, or nil.
func (s *Snapshot) Get(id library.ProviderID) *library.Library {
	return s.libraries[id]
}

// Len returns the number of libraries in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.libraries)
}

// IsEmpty returns true if the snapshot holds no libraries.
func (s *Snapshot) IsEmpty() bool {
	return len(s.libraries) == 0
}

// Libraries returns the records sorted by provider identity.
func (s *Snapshot) Libraries() []*library.Library {
	ids := make([]string, 0, len(s.libraries))
	for id := range s.libraries {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	libs := make([]*library.Library, 0, len(ids))
	for _, id := range ids {
		libs = append(libs, s.libraries[library.ProviderID(id)])
	}
	return libs
}

// store publishes snapshots atomically. The pointer swap is the only
// write to the visible mapping, so readers always see exactly one
// completed rebuild's mapping, never a mix of two.
type store struct {
	current atomic.Pointer[Snapshot]
}

// newStore creates a store publishing the empty snapshot.
func newStore() *store {
	s := &store{}
	s.current.Store(emptySnapshot)
	return s
}

// Publish atomically replaces the visible snapshot.
func (s *store) Publish(snap *Snapshot) {
	if snap == nil {
		snap = emptySnapshot
	}
	s.current.Store(snap)
}

// Current returns the snapshot visible at call time. Never blocks.
func (s *store) Current() *Snapshot {
	return s.current.Load()
}
