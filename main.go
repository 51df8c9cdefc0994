package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smalldave/l4lb/admin"
	"github.com/smalldave/l4lb/backend"
	"github.com/smalldave/l4lb/config"
	"github.com/smalldave/l4lb/proxy"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the load balancer configuration file")
	flag.Parse()

	baseHandler := slog.NewTextHandler(os.Stdout, nil)

	hub := admin.NewHub()
	logger := slog.New(admin.NewEventHandler(baseHandler, hub))
	slog.SetDefault(logger)

	opts, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool := backend.NewPool(specToBackends(opts.Backends))
	selector := backend.NewSelector(pool)
	monitor := backend.NewHealthMonitor(backend.Config{
		FailureThreshold: opts.Health.PassiveMonitoring.FailureThreshold,
		SuccessThreshold: opts.Health.PassiveMonitoring.SuccessThreshold,
	}, logger)
	resolver := backend.NewResolver()
	defer resolver.Stop()

	stats := admin.NewStats()

	lb := proxy.New(proxy.Config{
		ListenAddress:            opts.ListenAddress,
		ListenPort:               opts.ListenPort,
		ConnectTimeout:           opts.ConnectTimeout(),
		MaxConcurrentConnections: opts.Connection.MaxConcurrentConnections,
	}, selector, monitor, resolver, nil, logger, stats)

	if err := lb.Start(); err != nil {
		slog.Error("failed to start proxy", "error", err)
		os.Exit(1)
	}

	var adminSrv *admin.Server
	if opts.Admin.Enabled {
		adminSrv = admin.New(admin.Config{
			ListenAddress: opts.Admin.ListenAddress,
			ListenPort:    opts.Admin.ListenPort,
		}, pool, stats, hub, logger)
		if err := adminSrv.Start(); err != nil {
			slog.Error("failed to start admin plane", "error", err)
		}
	}

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	reloads := config.Watch(watchCtx, *configPath, config.DefaultPollInterval, logger)
	go func() {
		for next := range reloads {
			if err := pool.UpdateBackends(specToBackends(next.Backends)); err != nil {
				slog.Warn("config reload: failed to apply backend update", "error", err)
				continue
			}
			slog.Info("config reload: backend list updated", "count", len(next.Backends))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down...")

	cancelWatch()
	lb.Stop()

	if adminSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := adminSrv.Stop(ctx); err != nil {
			slog.Error("admin plane forced to shutdown", "error", err)
		}
	}

	slog.Info("stopped")
}

// specToBackends converts the config package's wire representation into
// backend.Backend values, assigning each a fresh identity.
func specToBackends(specs []config.BackendSpec) []*backend.Backend {
	out := make([]*backend.Backend, len(specs))
	for i, s := range specs {
		out[i] = backend.NewBackend(s.Name, s.Address, s.Port, s.Weight)
	}
	return out
}
