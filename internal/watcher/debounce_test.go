package watcher

import (
	"testing"
	"time"
)

// stubWatcher is a channel-backed Watcher for debounce tests.
type stubWatcher struct {
	events chan Event
	errs   chan error
	closed bool
}

func newStubWatcher() *stubWatcher {
	return &stubWatcher{
		events: make(chan Event, 64),
		errs:   make(chan error, 64),
	}
}

func (s *stubWatcher) Watch(string) error     { return nil }
func (s *stubWatcher) WatchTree(string) error { return nil }
func (s *stubWatcher) Unwatch(string) error   { return nil }
func (s *stubWatcher) Events() <-chan Event   { return s.events }
func (s *stubWatcher) Errors() <-chan error   { return s.errs }
func (s *stubWatcher) Stats() Stats           { return Stats{} }

func (s *stubWatcher) Close() error {
	if !s.closed {
		s.closed = true
		close(s.events)
		close(s.errs)
	}
	return nil
}

func TestDebounced_CoalescesSamePath(t *testing.T) {
	inner := newStubWatcher()
	dw := NewDebounced(inner, 50*time.Millisecond)
	defer dw.Close()

	inner.events <- Event{Path: "/a", Op: OpCreate}
	inner.events <- Event{Path: "/a", Op: OpWrite}
	inner.events <- Event{Path: "/a", Op: OpRemove}

	select {
	case e := <-dw.Events():
		if e.Path != "/a" {
			t.Errorf("Path = %q, want /a", e.Path)
		}
		for _, op := range []Op{OpCreate, OpWrite, OpRemove} {
			if !e.Op.Has(op) {
				t.Errorf("coalesced Op missing %v", op)
			}
		}
	case <-time.After(time.Second):
		t.Fatal("no coalesced event delivered")
	}

	select {
	case e := <-dw.Events():
		t.Errorf("unexpected second event: %+v", e)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDebounced_SeparatePathsDeliverSeparately(t *testing.T) {
	inner := newStubWatcher()
	dw := NewDebounced(inner, 20*time.Millisecond)
	defer dw.Close()

	inner.events <- Event{Path: "/a", Op: OpRemove}
	inner.events <- Event{Path: "/b", Op: OpRemove}

	got := map[string]bool{}
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case e := <-dw.Events():
			got[e.Path] = true
		case <-timeout:
			t.Fatalf("only received %d events: %v", len(got), got)
		}
	}

	if !got["/a"] || !got["/b"] {
		t.Errorf("got events for %v, want /a and /b", got)
	}
}

func TestDebounced_DefaultDelay(t *testing.T) {
	inner := newStubWatcher()
	dw := NewDebounced(inner, 0)
	defer dw.Close()

	if dw.delay != 100*time.Millisecond {
		t.Errorf("delay = %v, want 100ms default", dw.delay)
	}
}

func TestDebounced_CloseIsIdempotent(t *testing.T) {
	inner := newStubWatcher()
	dw := NewDebounced(inner, 10*time.Millisecond)

	if err := dw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := dw.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
