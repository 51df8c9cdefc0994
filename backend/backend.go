// Package backend models the proxy's backend pool: immutable backend
// identity, atomic health state, passive failure/success windows, and the
// round-robin selector that chooses among currently-healthy backends.
package backend

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Backend is an immutable identity tuple for one remote TCP endpoint the
// proxy may forward client traffic to. Equality across reloads is by
// Name+Address+Port; the ID is an internally-assigned correlation handle
// used only by logging and the admin API, never by selection or health
// semantics.
type Backend struct {
	ID      uuid.UUID
	Name    string
	Address string
	Port    int
	// Weight is reserved for a future weighted-selection policy; the
	// round-robin Selector ignores it entirely.
	Weight int

	health *BackendHealth
	window *ErrorWindow
}

// NewBackend constructs a Backend with a fresh healthy state and a zeroed
// error window. Weight defaults to 1 when given as 0 or negative.
func NewBackend(name, address string, port, weight int) *Backend {
	if weight < 1 {
		weight = 1
	}
	return &Backend{
		ID:      uuid.New(),
		Name:    name,
		Address: address,
		Port:    port,
		Weight:  weight,
		health:  NewBackendHealth(),
		window:  NewErrorWindow(),
	}
}

// Health returns the backend's health flag.
func (b *Backend) Health() *BackendHealth { return b.health }

// Window returns the backend's consecutive-failure/success counters.
func (b *Backend) Window() *ErrorWindow { return b.window }

// sameIdentity reports whether two backends refer to the same logical
// endpoint, used by Pool.UpdateBackends to carry health state forward
// across a reload instead of resetting it.
func (b *Backend) sameIdentity(other *Backend) bool {
	return b.Name == other.Name && b.Address == other.Address && b.Port == other.Port
}

// BackendHealth is an atomically readable healthy/unhealthy flag. All
// methods are safe under concurrent invocation; readers never observe a
// torn value because the flag is a single machine word.
type BackendHealth struct {
	healthy atomic.Bool
}

// NewBackendHealth returns a BackendHealth initialised to healthy.
func NewBackendHealth() *BackendHealth {
	h := &BackendHealth{}
	h.healthy.Store(true)
	return h
}

// IsHealthy reports the current state. Never blocks.
func (h *BackendHealth) IsHealthy() bool { return h.healthy.Load() }

// MarkHealthy transitions to healthy. A no-op, observable only as a no-op,
// if already healthy.
func (h *BackendHealth) MarkHealthy() { h.healthy.Store(true) }

// MarkUnhealthy transitions to unhealthy. A no-op, observable only as a
// no-op, if already unhealthy.
func (h *BackendHealth) MarkUnhealthy() { h.healthy.Store(false) }
