// Package library defines synthetic library records and the provider
// interface that contributes them.
//
// A synthetic library is a named collection of file roots discovered by
// a provider (generated sources, downloaded dependencies) rather than
// declared in the primary project structure. Each record keeps two root
// sets: the declared set fixed when the record is built, and the live
// set that shrinks as watched files are deleted and grows back when a
// version-control sync restores them.
package library

import (
	"sort"
	"sync"

	"github.com/tmcrae/synthlib/internal/vfs"
)

// ProviderID is the stable identity of a library provider. It keys the
// published snapshot, so it must not change between rebuilds.
type ProviderID string

// String returns the ID as a string.
func (id ProviderID) String() string {
	return string(id)
}

// Library is one provider's synthetic library.
//
// The declared set is immutable after construction. The live set is
// guarded internally, so concurrent RemoveFiles and RestoreMissing
// calls converge without external locking; when a removal and a
// restoration of the same path race, the last write wins and the next
// full rebuild re-derives the set from scratch.
type Library struct {
	id   ProviderID
	name string
	fs   vfs.VFS

	// declared is the root set at creation time. Never mutated.
	declared map[string]struct{}

	mu   sync.RWMutex
	live map[string]struct{}
}

// New creates a library record whose declared and live sets are both
// the given roots. Duplicate roots are collapsed.
func New(id ProviderID, name string, roots []string, fs vfs.VFS) *Library {
	declared := make(map[string]struct{}, len(roots))
	live := make(map[string]struct{}, len(roots))
	for _, r := range roots {
		declared[r] = struct{}{}
		live[r] = struct{}{}
	}
	return &Library{
		id:       id,
		name:     name,
		fs:       fs,
		declared: declared,
		live:     live,
	}
}

// ID returns the owning provider's identity.
func (l *Library) ID() ProviderID {
	return l.id
}

// Name returns the human-readable library name.
func (l *Library) Name() string {
	return l.name
}

// Len returns the number of live roots.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.live)
}

// Contains returns true if path is currently a live root.
func (l *Library) Contains(path string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.live[path]
	return ok
}

// Roots returns a sorted copy of the live root set.
func (l *Library) Roots() []string {
	l.mu.RLock()
	roots := make([]string, 0, len(l.live))
	for r := range l.live {
		roots = append(roots, r)
	}
	l.mu.RUnlock()

	sort.Strings(roots)
	return roots
}

// Missing returns a sorted copy of the declared roots that are not
// currently live.
func (l *Library) Missing() []string {
	l.mu.RLock()
	var missing []string
	for r := range l.declared {
		if _, ok := l.live[r]; !ok {
			missing = append(missing, r)
		}
	}
	l.mu.RUnlock()

	sort.Strings(missing)
	return missing
}

// RemoveFiles drops any of the given paths from the live set.
// Paths the library does not contain are ignored, so a broadcast of a
// deletion batch to every library is safe and idempotent.
func (l *Library) RemoveFiles(paths []string) {
	if len(paths) == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range paths {
		delete(l.live, p)
	}
}

// RestoreMissing re-adds every declared root that is absent from the
// live set and exists again on the file system. It returns the number
// of roots restored; callers that only need the side effect may ignore
// it.
func (l *Library) RestoreMissing() int {
	// Probe outside the lock. A path deleted between the probe and the
	// re-add shows up as a live root pointing at a missing file until
	// the next deletion event or rebuild corrects it.
	var revived []string
	for _, p := range l.Missing() {
		if l.fs.Exists(p) {
			revived = append(revived, p)
		}
	}
	if len(revived) == 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	restored := 0
	for _, p := range revived {
		if _, ok := l.live[p]; !ok {
			l.live[p] = struct{}{}
			restored++
		}
	}
	return restored
}
