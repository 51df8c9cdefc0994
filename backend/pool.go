package backend

import (
	"errors"
	"sync/atomic"
)

// ErrEmptyBackends is returned by UpdateBackends when called with an empty
// or nil list — the pool never publishes an empty snapshot.
var ErrEmptyBackends = errors.New("backend: update requires at least one backend")

// snapshot is the pool's immutable published state. A new snapshot is
// built and swapped in atomically by UpdateBackends; readers load the
// current pointer once and never observe a partially-updated list.
type snapshot struct {
	backends []*Backend
}

// Pool owns the current backend list and publishes an atomically-readable
// snapshot of it. Updates (e.g. from a config reload) replace the
// snapshot wholesale; backends that persist by identity across an update
// carry their existing health state forward.
type Pool struct {
	current atomic.Pointer[snapshot]
}

// NewPool returns a Pool holding the given initial backends. Panics if
// called with an empty list — callers are expected to validate
// configuration (spec: "empty is a fatal startup error") before
// constructing the pool.
func NewPool(initial []*Backend) *Pool {
	if len(initial) == 0 {
		panic("backend: NewPool requires at least one backend")
	}
	p := &Pool{}
	p.current.Store(&snapshot{backends: initial})
	return p
}

// UpdateBackends atomically replaces the pool's backend list. Backends in
// the new list that match an existing backend's Name+Address+Port carry
// their BackendHealth/ErrorWindow forward so a reload does not reset
// health state for unchanged entries; genuinely new entries start
// healthy with a fresh error window.
func (p *Pool) UpdateBackends(next []*Backend) error {
	if len(next) == 0 {
		return ErrEmptyBackends
	}

	prev := p.current.Load()
	merged := make([]*Backend, len(next))
	for i, nb := range next {
		merged[i] = nb
		if prev == nil {
			continue
		}
		for _, ob := range prev.backends {
			if ob.sameIdentity(nb) {
				merged[i] = &Backend{
					ID:      ob.ID,
					Name:    nb.Name,
					Address: nb.Address,
					Port:    nb.Port,
					Weight:  nb.Weight,
					health:  ob.health,
					window:  ob.window,
				}
				break
			}
		}
	}

	p.current.Store(&snapshot{backends: merged})
	return nil
}

// All returns every backend in the current snapshot, healthy or not.
// Used by the admin API; not part of the selection path.
func (p *Pool) All() []*Backend {
	s := p.current.Load()
	out := make([]*Backend, len(s.backends))
	copy(out, s.backends)
	return out
}

// GetHealthyBackends returns a stable snapshot of the currently healthy
// backends: every element satisfies IsHealthy() at the moment this
// snapshot is constructed. The caller may iterate freely without
// observing a concurrent pool update; a later call may return a
// different result.
func (p *Pool) GetHealthyBackends() []*Backend {
	s := p.current.Load()
	healthy := make([]*Backend, 0, len(s.backends))
	for _, b := range s.backends {
		if b.Health().IsHealthy() {
			healthy = append(healthy, b)
		}
	}
	return healthy
}
