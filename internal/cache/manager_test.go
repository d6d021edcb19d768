package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmcrae/synthlib/internal/library"
	"github.com/tmcrae/synthlib/internal/notify"
	"github.com/tmcrae/synthlib/internal/vfs"
	"github.com/tmcrae/synthlib/internal/watcher"
)

// fakeProvider is a scriptable provider for manager tests.
type fakeProvider struct {
	mu    sync.Mutex
	id    library.ProviderID
	name  string
	files []string
	err   error
	calls int
}

func (f *fakeProvider) ID() library.ProviderID { return f.id }
func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) DiscoverFiles(context.Context, library.Metadata) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.files, f.err
}

func (f *fakeProvider) set(files []string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = files
	f.err = err
}

func newTestManager(t *testing.T, fs vfs.VFS, providers ...library.Provider) *Manager {
	t.Helper()
	registry := library.NewRegistry()
	for _, p := range providers {
		require.NoError(t, registry.Register(p))
	}
	return NewManager(registry, fs)
}

func seedFS(t *testing.T, paths ...string) *vfs.MemFS {
	t.Helper()
	fs := vfs.NewMemFS()
	for _, p := range paths {
		require.NoError(t, fs.WriteFile(p, []byte("x"), 0o644))
	}
	return fs
}

func removeEvents(paths ...string) []watcher.Event {
	events := make([]watcher.Event, 0, len(paths))
	for _, p := range paths {
		events = append(events, watcher.Event{Path: p, Op: watcher.OpRemove, Timestamp: time.Now()})
	}
	return events
}

func TestRebuild_PublishesAllProviders(t *testing.T) {
	fs := seedFS(t, "/gen/a.go", "/gen/b.go", "/deps/lib.jar")
	p1 := &fakeProvider{id: "gen", name: "Generated", files: []string{"/gen/a.go", "/gen/b.go"}}
	p2 := &fakeProvider{id: "deps", name: "Dependencies", files: []string{"/deps/lib.jar"}}
	m := newTestManager(t, fs, p1, p2)

	m.Rebuild(context.Background(), library.Metadata{SyncGeneration: 1})

	snap := m.Current()
	require.Equal(t, 2, snap.Len())
	assert.Equal(t, []string{"/gen/a.go", "/gen/b.go"}, snap.Get("gen").Roots())
	assert.Equal(t, []string{"/deps/lib.jar"}, snap.Get("deps").Roots())
	assert.Equal(t, uint64(1), m.Generation())
	assert.Equal(t, PhaseIdle, m.Phase())
}

func TestRebuild_ProviderFailureIsIsolated(t *testing.T) {
	fs := seedFS(t, "/gen/x", "/gen/y")
	ok := &fakeProvider{id: "gen", name: "Generated", files: []string{"/gen/x", "/gen/y"}}
	bad := &fakeProvider{id: "broken", name: "Broken", err: errors.New("discovery exploded")}
	m := newTestManager(t, fs, ok, bad)

	m.Rebuild(context.Background(), library.Metadata{})

	snap := m.Current()
	assert.Equal(t, 1, snap.Len())
	assert.Equal(t, []string{"/gen/x", "/gen/y"}, snap.Get("gen").Roots())
	assert.Nil(t, snap.Get("broken"))
	assert.Equal(t, uint64(1), m.Stats().ProviderFailures)
}

func TestRebuild_EmptyContributionDropsLibrary(t *testing.T) {
	fs := seedFS(t, "/gen/m")
	p := &fakeProvider{id: "gen", name: "Generated", files: []string{"/gen/m"}}
	m := newTestManager(t, fs, p)

	m.Rebuild(context.Background(), library.Metadata{})
	require.NotNil(t, m.GetLibrary("gen"))

	p.set(nil, nil)
	m.Rebuild(context.Background(), library.Metadata{})

	assert.Nil(t, m.GetLibrary("gen"))
	assert.True(t, m.Current().IsEmpty())
}

func TestGetLibrary_AbsentWhileRebuilding(t *testing.T) {
	fs := seedFS(t, "/gen/a")
	p := &fakeProvider{id: "gen", name: "Generated", files: []string{"/gen/a"}}
	m := newTestManager(t, fs, p)
	m.Rebuild(context.Background(), library.Metadata{})
	require.NotNil(t, m.GetLibrary("gen"))

	m.BeginSync()
	assert.Nil(t, m.GetLibrary("gen"), "gated read must be absent even with a populated snapshot")
	assert.Equal(t, PhaseRebuilding, m.Phase())

	m.FinishSync(context.Background(), notify.SyncModeFull, notify.SyncSuccess, nil)
	assert.NotNil(t, m.GetLibrary("gen"))
}

func TestHandleFileEvents_BroadcastsToAllLibraries(t *testing.T) {
	fs := seedFS(t, "/a", "/b", "/c")
	p1 := &fakeProvider{id: "l1", name: "L1", files: []string{"/a", "/b"}}
	p2 := &fakeProvider{id: "l2", name: "L2", files: []string{"/b", "/c"}}
	m := newTestManager(t, fs, p1, p2)
	m.Rebuild(context.Background(), library.Metadata{})

	m.HandleFileEvents(removeEvents("/b"))

	assert.Equal(t, []string{"/a"}, m.GetLibrary("l1").Roots())
	assert.Equal(t, []string{"/c"}, m.GetLibrary("l2").Roots())
	assert.Equal(t, uint64(2), m.Stats().FilesRemoved)
}

func TestHandleFileEvents_SkippedWhileGated(t *testing.T) {
	fs := seedFS(t, "/a", "/b")
	p := &fakeProvider{id: "gen", name: "Generated", files: []string{"/a", "/b"}}
	m := newTestManager(t, fs, p)
	m.Rebuild(context.Background(), library.Metadata{})

	m.BeginSync()
	m.HandleFileEvents(removeEvents("/a"))
	m.FinishSync(context.Background(), notify.SyncModeIncremental, notify.SyncSuccess, nil)

	assert.Equal(t, []string{"/a", "/b"}, m.GetLibrary("gen").Roots(),
		"a batch arriving during the gate must not mutate roots")
	assert.Equal(t, uint64(1), m.Stats().BatchesSkipped)
}

func TestHandleFileEvents_SkippedOnEmptySnapshot(t *testing.T) {
	fs := vfs.NewMemFS()
	m := newTestManager(t, fs)

	m.HandleFileEvents(removeEvents("/anything"))

	assert.Equal(t, uint64(1), m.Stats().BatchesSkipped)
}

func TestHandleFileEvents_IgnoresNonRemovals(t *testing.T) {
	fs := seedFS(t, "/a")
	p := &fakeProvider{id: "gen", name: "Generated", files: []string{"/a"}}
	m := newTestManager(t, fs, p)
	m.Rebuild(context.Background(), library.Metadata{})

	m.HandleFileEvents([]watcher.Event{
		{Path: "/a", Op: watcher.OpWrite},
		{Path: "/new", Op: watcher.OpCreate},
	})

	assert.Equal(t, []string{"/a"}, m.GetLibrary("gen").Roots())
	assert.Equal(t, uint64(0), m.Stats().FilesRemoved)
}

func TestHandleVcsSync_RestoresMissingRoots(t *testing.T) {
	fs := seedFS(t, "/a", "/b")
	p := &fakeProvider{id: "gen", name: "Generated", files: []string{"/a", "/b"}}
	m := newTestManager(t, fs, p)
	m.Rebuild(context.Background(), library.Metadata{})

	m.HandleFileEvents(removeEvents("/b"))
	require.Equal(t, []string{"/a"}, m.GetLibrary("gen").Roots())

	m.HandleVcsSync()

	assert.Equal(t, []string{"/a", "/b"}, m.GetLibrary("gen").Roots())
	assert.Equal(t, uint64(1), m.Stats().FilesRestored)
}

func TestFinishSync_StartupRebuildsWithMetadata(t *testing.T) {
	fs := seedFS(t, "/gen/a")
	p := &fakeProvider{id: "gen", name: "Generated", files: []string{"/gen/a"}}
	m := newTestManager(t, fs, p)

	m.BeginSync()
	m.FinishSync(context.Background(), notify.SyncModeStartup, notify.SyncSuccess,
		&library.Metadata{SyncGeneration: 1})

	assert.NotNil(t, m.GetLibrary("gen"))
	assert.Equal(t, uint64(1), m.Stats().Rebuilds)
}

func TestFinishSync_StartupWithoutMetadataSkipsRebuild(t *testing.T) {
	fs := vfs.NewMemFS()
	p := &fakeProvider{id: "gen", name: "Generated", files: []string{"/gen/a"}}
	m := newTestManager(t, fs, p)

	m.BeginSync()
	m.FinishSync(context.Background(), notify.SyncModeStartup, notify.SyncSuccess, nil)

	assert.True(t, m.Current().IsEmpty())
	assert.Equal(t, uint64(0), m.Stats().Rebuilds)
	assert.Equal(t, PhaseIdle, m.Phase())
}

func TestFinishSync_FailedStartupSkipsRebuild(t *testing.T) {
	fs := vfs.NewMemFS()
	p := &fakeProvider{id: "gen", name: "Generated", files: []string{"/gen/a"}}
	m := newTestManager(t, fs, p)

	m.BeginSync()
	m.FinishSync(context.Background(), notify.SyncModeStartup, notify.SyncFailure,
		&library.Metadata{})

	assert.True(t, m.Current().IsEmpty())
	assert.Equal(t, uint64(0), m.Stats().Rebuilds)
}

func TestAttach_LifecycleDrivenThroughHub(t *testing.T) {
	fs := seedFS(t, "/a", "/b")
	p := &fakeProvider{id: "gen", name: "Generated", files: []string{"/a", "/b"}}
	m := newTestManager(t, fs, p)

	hub := notify.NewHub()
	require.NoError(t, m.Attach(hub))

	hub.Publish(notify.TopicSyncStarted, notify.SyncStarted{Mode: notify.SyncModeStartup})
	assert.Equal(t, PhaseRebuilding, m.Phase())

	hub.Publish(notify.TopicSyncFinished, notify.SyncFinished{
		Mode:     notify.SyncModeStartup,
		Result:   notify.SyncSuccess,
		Metadata: &library.Metadata{SyncGeneration: 1},
	})
	require.NotNil(t, m.GetLibrary("gen"))

	m.HandleFileEvents(removeEvents("/b"))
	hub.Publish(notify.TopicVcsSynced, nil)
	assert.Equal(t, []string{"/a", "/b"}, m.GetLibrary("gen").Roots())

	m.Close()
	assert.Equal(t, 0, hub.SubscriberCount(notify.TopicSyncStarted))
	assert.True(t, m.Current().IsEmpty())
}

func TestRun_FeedsWatcherBatches(t *testing.T) {
	fs := seedFS(t, "/a", "/b")
	p := &fakeProvider{id: "gen", name: "Generated", files: []string{"/a", "/b"}}
	m := newTestManager(t, fs, p)
	m.Rebuild(context.Background(), library.Metadata{})

	w := newFakeWatcher()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, w)
		close(done)
	}()

	w.events <- watcher.Event{Path: "/b", Op: watcher.OpRemove}

	require.Eventually(t, func() bool {
		lib := m.GetLibrary("gen")
		return lib != nil && !lib.Contains("/b")
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

// fakeWatcher implements watcher.Watcher over plain channels.
type fakeWatcher struct {
	events chan watcher.Event
	errs   chan error
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{
		events: make(chan watcher.Event, 16),
		errs:   make(chan error, 16),
	}
}

func (f *fakeWatcher) Watch(string) error           { return nil }
func (f *fakeWatcher) WatchTree(string) error       { return nil }
func (f *fakeWatcher) Unwatch(string) error         { return nil }
func (f *fakeWatcher) Events() <-chan watcher.Event { return f.events }
func (f *fakeWatcher) Errors() <-chan error         { return f.errs }
func (f *fakeWatcher) Close() error                 { return nil }
func (f *fakeWatcher) Stats() watcher.Stats         { return watcher.Stats{} }
