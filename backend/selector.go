package backend

import "sync/atomic"

// signMask clears the sign bit of a 32-bit value, mapping any negative
// value produced by wraparound to a non-negative one before modulo.
const signMask = 0x7FFFFFFF

// Selector performs lock-free round-robin selection over a Pool's
// currently-healthy backends. A single Selector should be shared across
// all connection handlers for a given listener so the counter advances
// monotonically across callers.
type Selector struct {
	pool    *Pool
	counter int32
}

// NewSelector returns a Selector reading from pool. The internal counter
// starts at -1 so the first selection yields index 0.
func NewSelector(pool *Pool) *Selector {
	return &Selector{pool: pool, counter: -1}
}

// SelectBackend returns the next healthy backend in round-robin order, or
// false if no backend is currently healthy. Wraparound of the internal
// counter is benign: the sign bit is masked off before the modulo so a
// negative post-wraparound value still maps to a valid index.
func (s *Selector) SelectBackend() (*Backend, bool) {
	healthy := s.pool.GetHealthyBackends()
	if len(healthy) == 0 {
		return nil, false
	}

	n := atomic.AddInt32(&s.counter, 1)
	idx := int(n&signMask) % len(healthy)
	return healthy[idx], true
}
