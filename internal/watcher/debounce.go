package watcher

import (
	"sync"
	"time"
)

// Debounced wraps a Watcher and coalesces rapid changes to the same
// path into one event carrying the combined operations. Build tools
// often rewrite whole trees at once; without debouncing every
// intermediate write reaches the cache's listener.
type Debounced struct {
	inner Watcher
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*pendingEvent
	events  chan Event

	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// pendingEvent tracks one coalescing window.
type pendingEvent struct {
	event Event
	timer *time.Timer
}

// Ensure Debounced implements Watcher.
var _ Watcher = (*Debounced)(nil)

// NewDebounced creates a debouncing wrapper around inner.
func NewDebounced(inner Watcher, delay time.Duration) *Debounced {
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	dw := &Debounced{
		inner:   inner,
		delay:   delay,
		pending: make(map[string]*pendingEvent),
		events:  make(chan Event, 100),
		closeCh: make(chan struct{}),
	}

	dw.closedWg.Add(1)
	go dw.forwardLoop()

	return dw
}

// Watch starts watching a path.
func (dw *Debounced) Watch(path string) error {
	return dw.inner.Watch(path)
}

// WatchTree starts watching a directory recursively.
func (dw *Debounced) WatchTree(path string) error {
	return dw.inner.WatchTree(path)
}

// Unwatch stops watching a path.
func (dw *Debounced) Unwatch(path string) error {
	return dw.inner.Unwatch(path)
}

// Events returns the debounced event channel.
func (dw *Debounced) Events() <-chan Event {
	return dw.events
}

// Errors returns the inner watcher's error channel.
func (dw *Debounced) Errors() <-chan error {
	return dw.inner.Errors()
}

// Close stops the wrapper and the inner watcher.
func (dw *Debounced) Close() error {
	dw.mu.Lock()
	if dw.closed {
		dw.mu.Unlock()
		return nil
	}
	dw.closed = true
	close(dw.closeCh)

	for path, p := range dw.pending {
		p.timer.Stop()
		delete(dw.pending, path)
	}
	dw.mu.Unlock()

	err := dw.inner.Close()
	dw.closedWg.Wait()
	close(dw.events)
	return err
}

// Stats returns statistics including pending debounce windows.
func (dw *Debounced) Stats() Stats {
	dw.mu.Lock()
	pendingCount := len(dw.pending)
	dw.mu.Unlock()

	stats := dw.inner.Stats()
	stats.PendingEvents = pendingCount
	return stats
}

// forwardLoop consumes inner events and schedules coalesced delivery.
func (dw *Debounced) forwardLoop() {
	defer dw.closedWg.Done()

	for {
		select {
		case <-dw.closeCh:
			return
		case event, ok := <-dw.inner.Events():
			if !ok {
				return
			}
			dw.coalesce(event)
		}
	}
}

// coalesce merges the event into any pending window for its path.
func (dw *Debounced) coalesce(event Event) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.closed {
		return
	}

	if p, ok := dw.pending[event.Path]; ok {
		p.event.Op |= event.Op
		p.event.Timestamp = event.Timestamp
		p.timer.Reset(dw.delay)
		return
	}

	p := &pendingEvent{event: event}
	p.timer = time.AfterFunc(dw.delay, func() {
		dw.flush(event.Path)
	})
	dw.pending[event.Path] = p
}

// flush delivers the pending event for path.
func (dw *Debounced) flush(path string) {
	dw.mu.Lock()
	p, ok := dw.pending[path]
	if ok {
		delete(dw.pending, path)
	}
	closed := dw.closed
	dw.mu.Unlock()

	if !ok || closed {
		return
	}

	select {
	case dw.events <- p.event:
	default:
		// Buffer full, drop. The next rebuild reconciles.
	}
}
