// Package config loads LoadBalancerOptions from a YAML document, applies
// environment-variable overrides for a handful of scalar fields, and
// polls the source file for changes so the backend pool can be hot
// reloaded without a process restart.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// BackendSpec is one entry in LoadBalancer.Backends[].
type BackendSpec struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	Weight  int    `yaml:"weight"`
}

// PassiveMonitoring holds the passive health-monitoring thresholds.
type PassiveMonitoring struct {
	Enabled           bool `yaml:"enabled"`
	FailureThreshold  int  `yaml:"failure_threshold"`
	SuccessThreshold  int  `yaml:"success_threshold"`
	TimeWindowSeconds int  `yaml:"time_window_seconds"`
}

// Health groups the health-monitoring configuration block.
type Health struct {
	PassiveMonitoring PassiveMonitoring `yaml:"passive_monitoring"`
}

// Connection groups per-connection configuration.
type Connection struct {
	ConnectTimeoutMs         int `yaml:"connect_timeout_ms"`
	IdleTimeoutMs            int `yaml:"idle_timeout_ms"`
	MaxConcurrentConnections int `yaml:"max_concurrent_connections"`
}

// Admin configures the observability HTTP/WebSocket plane.
type Admin struct {
	Enabled       bool   `yaml:"enabled" env:"LB_ADMIN_ENABLED"`
	ListenAddress string `yaml:"listen_address" env:"LB_ADMIN_LISTEN_ADDRESS"`
	ListenPort    int    `yaml:"listen_port" env:"LB_ADMIN_LISTEN_PORT"`
}

// LoadBalancerOptions is the full configuration surface recognised by
// this proxy (spec.md §6). Only ListenAddress/ListenPort/Backends,
// ConnectTimeoutMs, and the two thresholds are consumed by the core;
// IdleTimeoutMs and MaxConcurrentConnections are reserved/optionally
// enforced per SPEC_FULL.md §4.7.
type LoadBalancerOptions struct {
	ListenAddress string        `yaml:"listen_address" env:"LB_LISTEN_ADDRESS"`
	ListenPort    int           `yaml:"listen_port" env:"LB_LISTEN_PORT"`
	Backends      []BackendSpec `yaml:"backends"`
	Health        Health        `yaml:"health"`
	Connection    Connection    `yaml:"connection"`
	Admin         Admin         `yaml:"admin"`
}

// document is the on-disk YAML shape: everything nests under a top-level
// `load_balancer` key, matching spec.md §6's `LoadBalancer.*` key prefix.
type document struct {
	LoadBalancer LoadBalancerOptions `yaml:"load_balancer"`
}

// ErrNoBackends is returned by Load when the parsed document has an empty
// backend list — spec.md §6 treats this as a fatal startup error.
var ErrNoBackends = fmt.Errorf("config: load_balancer.backends must not be empty")

// defaults applies the defaults from spec.md §6's configuration table.
func defaults() LoadBalancerOptions {
	return LoadBalancerOptions{
		ListenAddress: "0.0.0.0",
		ListenPort:    8000,
		Health: Health{
			PassiveMonitoring: PassiveMonitoring{
				Enabled:          true,
				FailureThreshold: 3,
				SuccessThreshold: 2,
			},
		},
		Connection: Connection{
			ConnectTimeoutMs: 5000,
		},
		Admin: Admin{
			Enabled:       true,
			ListenAddress: "127.0.0.1",
			ListenPort:    9090,
		},
	}
}

// Load reads and parses the YAML document at path, applying defaults for
// any unset field and then environment-variable overrides for the listen
// address and port and the admin-plane fields. Backend weights default to
// 1 when unset.
func Load(path string) (LoadBalancerOptions, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return LoadBalancerOptions{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return parse(raw)
}

func parse(raw []byte) (LoadBalancerOptions, error) {
	doc := document{LoadBalancer: defaults()}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return LoadBalancerOptions{}, fmt.Errorf("config: parsing yaml: %w", err)
	}
	opts := doc.LoadBalancer

	if len(opts.Backends) == 0 {
		return LoadBalancerOptions{}, ErrNoBackends
	}
	for i := range opts.Backends {
		if opts.Backends[i].Weight < 1 {
			opts.Backends[i].Weight = 1
		}
	}

	if err := env.ParseWithOptions(&opts, env.Options{}); err != nil {
		return LoadBalancerOptions{}, fmt.Errorf("config: applying env overrides: %w", err)
	}
	return opts, nil
}

// ConnectTimeout returns Connection.ConnectTimeoutMs as a time.Duration.
func (o LoadBalancerOptions) ConnectTimeout() time.Duration {
	return time.Duration(o.Connection.ConnectTimeoutMs) * time.Millisecond
}
