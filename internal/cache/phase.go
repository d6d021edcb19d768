package cache

import "sync/atomic"

// Phase is the cache's rebuild phase.
type Phase uint32

const (
	// PhaseIdle means no full rebuild is in progress.
	PhaseIdle Phase = iota

	// PhaseRebuilding means a full rebuild is recomputing the snapshot.
	// Reads return absent for the duration.
	PhaseRebuilding
)

// String returns a human-readable representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseRebuilding:
		return "REBUILDING"
	default:
		return "UNKNOWN"
	}
}

// phaseGate is an atomically readable phase indicator combined with a
// rebuild generation counter. The low bit of the word holds the phase,
// the remaining bits the generation. Packing both into one word lets a
// reader observe phase and generation coherently in a single load, so
// it can tell that a value it read was concurrent with a rebuild.
type phaseGate struct {
	state atomic.Uint64
}

const phaseRebuildingBit = 1

// Begin moves the gate to PhaseRebuilding. It returns false if a
// rebuild was already in progress, in which case the caller must not
// call Finish.
func (g *phaseGate) Begin() bool {
	for {
		old := g.state.Load()
		if old&phaseRebuildingBit != 0 {
			return false
		}
		if g.state.CompareAndSwap(old, old|phaseRebuildingBit) {
			return true
		}
	}
}

// Finish moves the gate back to PhaseIdle.
func (g *phaseGate) Finish() {
	for {
		old := g.state.Load()
		if g.state.CompareAndSwap(old, old&^uint64(phaseRebuildingBit)) {
			return
		}
	}
}

// BumpGeneration records one published rebuild.
func (g *phaseGate) BumpGeneration() {
	g.state.Add(1 << 1)
}

// Load returns the current phase and generation as one coherent pair.
func (g *phaseGate) Load() (Phase, uint64) {
	s := g.state.Load()
	phase := PhaseIdle
	if s&phaseRebuildingBit != 0 {
		phase = PhaseRebuilding
	}
	return phase, s >> 1
}

// Rebuilding returns true if a rebuild is in progress.
func (g *phaseGate) Rebuilding() bool {
	return g.state.Load()&phaseRebuildingBit != 0
}
