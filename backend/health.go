package backend

import "log/slog"

// Config configures the passive HealthMonitor's thresholds.
type Config struct {
	// FailureThreshold is the number of consecutive RecordFailure calls
	// (from a healthy state) that transitions a backend to unhealthy.
	FailureThreshold int
	// SuccessThreshold is the number of consecutive RecordSuccess calls
	// (from an unhealthy state) that transitions a backend back to healthy.
	SuccessThreshold int
}

// HealthMonitor observes per-connection outcomes reported by the proxy and
// drives BackendHealth transitions via each backend's ErrorWindow. It is a
// pure side-effect observer: its own operations never fail visibly.
type HealthMonitor struct {
	cfg    Config
	logger *slog.Logger
}

// NewHealthMonitor returns a HealthMonitor with the given thresholds.
// Thresholds below 1 are clamped to 1 (spec: FailureThreshold/SuccessThreshold ≥ 1).
// A nil logger falls back to slog.Default().
func NewHealthMonitor(cfg Config, logger *slog.Logger) *HealthMonitor {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 1
	}
	if cfg.SuccessThreshold < 1 {
		cfg.SuccessThreshold = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthMonitor{cfg: cfg, logger: logger}
}

// RecordSuccess records a successful connection outcome for b. If the
// consecutive-success count reaches SuccessThreshold and b is currently
// unhealthy, b transitions to healthy.
func (m *HealthMonitor) RecordSuccess(b *Backend) {
	w := b.Window()
	w.RecordSuccess()
	successes := w.ConsecutiveSuccesses()

	if successes >= m.cfg.SuccessThreshold && !b.Health().IsHealthy() {
		b.Health().MarkHealthy()
		m.logger.Info("backend marked healthy",
			"backend", b.Name, "address", b.Address, "port", b.Port,
			"consecutive_successes", successes)
		return
	}
	m.logger.Debug("backend recorded success",
		"backend", b.Name, "consecutive_successes", successes,
		"success_threshold", m.cfg.SuccessThreshold)
}

// RecordFailure records a failed connection outcome for b. If the
// consecutive-failure count reaches FailureThreshold and b is currently
// healthy, b transitions to unhealthy.
func (m *HealthMonitor) RecordFailure(b *Backend) {
	w := b.Window()
	w.RecordError()
	failures := w.ConsecutiveFailures()

	if failures >= m.cfg.FailureThreshold && b.Health().IsHealthy() {
		b.Health().MarkUnhealthy()
		m.logger.Warn("backend marked unhealthy",
			"backend", b.Name, "address", b.Address, "port", b.Port,
			"consecutive_failures", failures)
		return
	}
	m.logger.Debug("backend recorded failure",
		"backend", b.Name, "consecutive_failures", failures,
		"failure_threshold", m.cfg.FailureThreshold)
}
