package config

import (
	"context"
	"hash/fnv"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// DefaultPollInterval is how often Watch re-reads the source file absent
// an explicit interval.
const DefaultPollInterval = 5 * time.Second

// fingerprint returns an FNV hash of the ordered backend list, used only
// to detect no-op reloads — it is not part of the pool's contract.
func fingerprint(backends []BackendSpec) uint64 {
	h := fnv.New64a()
	for _, b := range backends {
		_, _ = h.Write([]byte(b.Name))
		_, _ = h.Write([]byte(b.Address))
		_, _ = h.Write([]byte(strconv.Itoa(b.Port)))
		_, _ = h.Write([]byte(strconv.Itoa(b.Weight)))
	}
	return h.Sum64()
}

// Watch polls path at interval (DefaultPollInterval if <= 0), emitting a
// freshly parsed LoadBalancerOptions on the returned channel only when its
// backend-list fingerprint differs from the last emitted value. This is
// the "configuration source" the pool subscribes to (spec.md §3/§9); it
// never emits on a read or parse error — those are logged and the
// previous configuration remains in effect until the file becomes valid
// again. The channel is closed when ctx is cancelled.
func Watch(ctx context.Context, path string, interval time.Duration, logger *slog.Logger) <-chan LoadBalancerOptions {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	out := make(chan LoadBalancerOptions)

	go func() {
		defer close(out)

		var lastFingerprint uint64
		haveLast := false

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				raw, err := os.ReadFile(path)
				if err != nil {
					logger.Warn("config watch: failed to read file", "path", path, "error", err)
					continue
				}
				opts, err := parse(raw)
				if err != nil {
					logger.Warn("config watch: failed to parse file", "path", path, "error", err)
					continue
				}

				fp := fingerprint(opts.Backends)
				if haveLast && fp == lastFingerprint {
					continue
				}
				lastFingerprint = fp
				haveLast = true

				select {
				case out <- opts:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
