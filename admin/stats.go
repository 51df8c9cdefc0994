package admin

import "sync/atomic"

// Stats accumulates aggregate proxy counters since process start, exposed
// via GET /stats. It satisfies proxy.StatsRecorder.
type Stats struct {
	accepted int64
	forwarded int64
	failed    int64
	rejected  int64 // no healthy backend available at selection time
}

// NewStats returns a zeroed Stats.
func NewStats() *Stats { return &Stats{} }

// IncAccepted records one accepted client connection.
func (s *Stats) IncAccepted() { atomic.AddInt64(&s.accepted, 1) }

// IncForwarded records one session that forwarded and completed without
// a backend-attributable fault.
func (s *Stats) IncForwarded() { atomic.AddInt64(&s.forwarded, 1) }

// IncFailed records one session ending in a connect or forwarding fault.
func (s *Stats) IncFailed() { atomic.AddInt64(&s.failed, 1) }

// IncRejected records one connection dropped because no backend was healthy.
func (s *Stats) IncRejected() { atomic.AddInt64(&s.rejected, 1) }

// Snapshot is the JSON-serialisable view of Stats returned by GET /stats.
type Snapshot struct {
	Accepted  int64 `json:"accepted"`
	Forwarded int64 `json:"forwarded"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Accepted:  atomic.LoadInt64(&s.accepted),
		Forwarded: atomic.LoadInt64(&s.forwarded),
		Failed:    atomic.LoadInt64(&s.failed),
		Rejected:  atomic.LoadInt64(&s.rejected),
	}
}
