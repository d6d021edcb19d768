// Package cache maintains the in-memory snapshot of synthetic
// libraries for a build-synced project.
//
// Three independently timed event sources touch the cache: a full
// resynchronization rebuilds the snapshot from every registered
// provider, the file watcher's deletion events shrink individual
// library root sets in place, and a version-control sync re-adds
// previously removed roots that exist again. The snapshot reference is
// swapped atomically, and a phase gate suppresses reads and incremental
// writes while a rebuild is recomputing it, so consumers never observe
// a half-built mapping.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tmcrae/synthlib/internal/library"
	"github.com/tmcrae/synthlib/internal/notify"
	"github.com/tmcrae/synthlib/internal/vfs"
	"github.com/tmcrae/synthlib/internal/watcher"
)

// Manager owns the published snapshot and coordinates the three
// mutation paths. It is safe for concurrent use; none of its read
// paths block, regardless of an in-progress rebuild.
type Manager struct {
	registry *library.Registry
	fs       vfs.VFS
	log      *slog.Logger

	store *store
	gate  phaseGate

	// Hub attachment
	attachMu sync.Mutex
	hub      *notify.Hub
	subs     []notify.Subscription

	// Stats
	rebuilds         atomic.Uint64
	providerFailures atomic.Uint64
	batchesSkipped   atomic.Uint64
	filesRemoved     atomic.Uint64
	filesRestored    atomic.Uint64
}

// Stats is a point-in-time view of manager counters.
type Stats struct {
	// Rebuilds is the number of published rebuild passes.
	Rebuilds uint64

	// ProviderFailures counts providers excluded from a pass because
	// discovery failed.
	ProviderFailures uint64

	// BatchesSkipped counts event batches dropped because a rebuild
	// was in progress or the snapshot was empty.
	BatchesSkipped uint64

	// FilesRemoved counts roots removed by deletion events.
	FilesRemoved uint64

	// FilesRestored counts roots re-added by VCS sync restoration.
	FilesRestored uint64

	// Libraries is the size of the currently published snapshot.
	Libraries int
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// NewManager creates a manager over the given provider registry.
// The file system seam is used to re-validate restored roots.
func NewManager(registry *library.Registry, fs vfs.VFS, opts ...Option) *Manager {
	m := &Manager{
		registry: registry,
		fs:       fs,
		log:      slog.Default(),
		store:    newStore(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With("component", "cache")
	return m
}

// GetLibrary is the sole read entry point. It returns nil for the
// whole duration of a rebuild, regardless of the underlying snapshot;
// callers must treat that as "try again after sync", not as "the
// library does not exist".
func (m *Manager) GetLibrary(id library.ProviderID) *library.Library {
	if m.gate.Rebuilding() {
		return nil
	}
	return m.store.Current().Get(id)
}

// Current returns the currently published snapshot. Never blocks and
// never returns nil.
func (m *Manager) Current() *Snapshot {
	return m.store.Current()
}

// Phase returns the current rebuild phase.
func (m *Manager) Phase() Phase {
	p, _ := m.gate.Load()
	return p
}

// Generation returns the number of published rebuilds.
func (m *Manager) Generation() uint64 {
	_, gen := m.gate.Load()
	return gen
}

// BeginSync raises the gate at the start of a resynchronization.
// Reads return absent until FinishSync.
func (m *Manager) BeginSync() {
	if m.gate.Begin() {
		m.log.Debug("sync gate raised")
	}
}

// FinishSync completes a resynchronization. A successful startup sync
// with available metadata triggers the initial rebuild, mirroring a
// project that reopens with persisted build state. The gate drops only
// after any rebuild has published.
func (m *Manager) FinishSync(ctx context.Context, mode notify.SyncMode, result notify.SyncResult, md *library.Metadata) {
	if mode == notify.SyncModeStartup && result == notify.SyncSuccess && md != nil {
		m.rebuild(ctx, *md)
	}
	m.gate.Finish()
	m.log.Debug("sync gate dropped", "mode", mode.String(), "result", result.String())
}

// Rebuild recomputes the snapshot from every registered provider and
// publishes it as one atomic step. The sync driver calls this at the
// end of each successful full resynchronization. If the gate is not
// already up from BeginSync, Rebuild brackets itself.
func (m *Manager) Rebuild(ctx context.Context, md library.Metadata) {
	bracketed := m.gate.Begin()
	m.rebuild(ctx, md)
	if bracketed {
		m.gate.Finish()
	}
}

// rebuild runs one provider-iteration pass and publishes the result.
// The caller has already raised the gate.
func (m *Manager) rebuild(ctx context.Context, md library.Metadata) {
	providers := m.registry.Providers()
	libs := make([]*library.Library, 0, len(providers))

	for _, p := range providers {
		files, err := p.DiscoverFiles(ctx, md)
		if err != nil {
			// Isolation policy: a failing provider is excluded from
			// this pass, the rest still publish.
			m.providerFailures.Add(1)
			m.log.Error("provider discovery failed",
				"provider", p.ID().String(),
				"library", p.Name(),
				"error", err)
			continue
		}
		if len(files) == 0 {
			continue
		}
		libs = append(libs, library.New(p.ID(), p.Name(), files, m.fs))
	}

	m.store.Publish(NewSnapshot(libs))
	m.gate.BumpGeneration()
	m.rebuilds.Add(1)
	m.log.Info("snapshot published",
		"libraries", len(libs),
		"providers", len(providers),
		"generation", m.Generation())
}

// HandleFileEvents incorporates one batch of file change events.
//
// The gate check and the snapshot read are deliberately not performed
// under a common lock: a batch may land on a snapshot that is about to
// be replaced. That skew is accepted because every root set is
// re-derived from scratch by the next rebuild; locking here would
// stall the change stream behind slow provider discovery.
func (m *Manager) HandleFileEvents(events []watcher.Event) {
	if len(events) == 0 {
		return
	}

	snap := m.store.Current()
	if m.gate.Rebuilding() || snap.IsEmpty() {
		m.batchesSkipped.Add(1)
		return
	}

	var deleted []string
	for _, e := range events {
		if e.IsRemoval() {
			deleted = append(deleted, e.Path)
		}
	}
	if len(deleted) == 0 {
		return
	}

	// Broadcast to every library; nothing indexes which record owns
	// which path, and RemoveFiles ignores paths it does not contain.
	removed := 0
	for _, lib := range snap.Libraries() {
		before := lib.Len()
		lib.RemoveFiles(deleted)
		removed += before - lib.Len()
	}
	if removed > 0 {
		m.filesRemoved.Add(uint64(removed))
		m.log.Debug("removed deleted roots", "paths", len(deleted), "removed", removed)
	}
}

// HandleVcsSync re-checks previously removed roots on every library in
// the current snapshot and restores the ones that exist again. It runs
// unconditionally: the driving lifecycle does not overlap VCS sync
// with a full resync, and if that ever changes the worst case is a
// restored root the in-flight rebuild immediately supersedes.
func (m *Manager) HandleVcsSync() {
	restored := 0
	for _, lib := range m.store.Current().Libraries() {
		restored += lib.RestoreMissing()
	}
	if restored > 0 {
		m.filesRestored.Add(uint64(restored))
		m.log.Info("restored missing roots", "restored", restored)
	}
}

// Run consumes a watcher until ctx ends, feeding batches of events to
// HandleFileEvents. Events already queued behind the first one are
// drained into the same batch.
func (m *Manager) Run(ctx context.Context, w watcher.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return

		case err, ok := <-w.Errors():
			if !ok {
				return
			}
			m.log.Warn("watcher error", "error", err)

		case event, ok := <-w.Events():
			if !ok {
				return
			}
			batch := append([]watcher.Event{event}, drain(w.Events())...)
			m.HandleFileEvents(batch)
		}
	}
}

// drain collects whatever events are immediately available.
func drain(ch <-chan watcher.Event) []watcher.Event {
	var events []watcher.Event
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, e)
		default:
			return events
		}
	}
}

// Attach subscribes the manager to the lifecycle topics on hub.
// The sync driver publishes sync.started/sync.finished, the VCS
// integration publishes vcs.synced; the manager reacts as if the
// corresponding methods had been called directly.
func (m *Manager) Attach(hub *notify.Hub) error {
	m.attachMu.Lock()
	defer m.attachMu.Unlock()

	startSub, err := hub.Subscribe(notify.TopicSyncStarted, func(any) {
		m.BeginSync()
	})
	if err != nil {
		return err
	}

	finishSub, err := hub.Subscribe(notify.TopicSyncFinished, func(payload any) {
		fin, ok := payload.(notify.SyncFinished)
		if !ok {
			m.log.Warn("unexpected sync.finished payload")
			m.gate.Finish()
			return
		}
		m.FinishSync(context.Background(), fin.Mode, fin.Result, fin.Metadata)
	})
	if err != nil {
		hub.Unsubscribe(startSub)
		return err
	}

	vcsSub, err := hub.Subscribe(notify.TopicVcsSynced, func(any) {
		m.HandleVcsSync()
	})
	if err != nil {
		hub.Unsubscribe(startSub)
		hub.Unsubscribe(finishSub)
		return err
	}

	m.hub = hub
	m.subs = append(m.subs, startSub, finishSub, vcsSub)
	return nil
}

// Close detaches from the hub and clears the snapshot. The cache is
// in-memory only; a reopened project starts from the empty snapshot
// and rebuilds on its startup sync.
func (m *Manager) Close() {
	m.attachMu.Lock()
	defer m.attachMu.Unlock()

	if m.hub != nil {
		for _, sub := range m.subs {
			m.hub.Unsubscribe(sub)
		}
		m.hub = nil
		m.subs = nil
	}
	m.store.Publish(emptySnapshot)
}

// Stats returns current manager counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Rebuilds:         m.rebuilds.Load(),
		ProviderFailures: m.providerFailures.Load(),
		BatchesSkipped:   m.batchesSkipped.Load(),
		FilesRemoved:     m.filesRemoved.Load(),
		FilesRestored:    m.filesRestored.Load(),
		Libraries:        m.store.Current().Len(),
	}
}
