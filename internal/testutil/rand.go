package testutil

import "sync"

// ScriptedRand replays a fixed list of draws.
//
// Unlike random.Source, ScriptedRand lets a test decide exactly which
// candidate an operator picks. Each IntN(n) returns the next scripted value
// reduced modulo n. Once the script is exhausted it keeps returning 0.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ScriptedRand struct {
	mu    sync.Mutex
	draws []int
	idx   int
}

// NewScriptedRand creates a rand that returns draws in order.
func NewScriptedRand(draws ...int) *ScriptedRand {
	return &ScriptedRand{draws: draws}
}

// IntN returns the next scripted draw modulo n.
func (r *ScriptedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.idx >= len(r.draws) {
		return 0
	}
	d := r.draws[r.idx]
	r.idx++
	return d % n
}

// Consumed returns how many draws have been taken.
func (r *ScriptedRand) Consumed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.idx
}

// Reset rewinds the script to the first draw.
func (r *ScriptedRand) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.idx = 0
}
