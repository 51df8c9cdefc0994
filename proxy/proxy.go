// Package proxy implements the TCP accept loop and per-connection
// forwarding handler: select a backend, dial it with a timeout, forward
// bytes bidirectionally, and report the outcome to the health monitor.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smalldave/l4lb/backend"
	"github.com/smalldave/l4lb/forward"
)

// StatsRecorder receives aggregate counters for observability. Satisfied
// by *admin.Stats; nil-safe no-op recorder is substituted when none is
// supplied so the core proxy never depends on the admin package.
type StatsRecorder interface {
	IncAccepted()
	IncForwarded()
	IncFailed()
	IncRejected()
}

type noopStats struct{}

func (noopStats) IncAccepted()  {}
func (noopStats) IncForwarded() {}
func (noopStats) IncFailed()    {}
func (noopStats) IncRejected()  {}

// Config configures a TcpProxy instance.
type Config struct {
	ListenAddress string
	ListenPort    int
	// ConnectTimeout bounds dialing a selected backend.
	ConnectTimeout time.Duration
	// MaxConcurrentConnections bounds how many connections are handled at
	// once via a counting semaphore acquired at accept time. 0 means
	// unbounded.
	MaxConcurrentConnections int
}

// TcpProxy accepts client connections, selects a backend via Selector,
// dials it through Dialer, and forwards bytes with forward.Forward.
// Outcomes are reported to HealthMonitor.
type TcpProxy struct {
	cfg      Config
	selector *backend.Selector
	monitor  *backend.HealthMonitor
	resolver *backend.Resolver
	dialer   Dialer
	logger   *slog.Logger
	stats    StatsRecorder

	listener net.Listener
	sem      chan struct{} // nil when unbounded

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a TcpProxy. dialer may be nil to use the real network
// stack; tests supply a mock to exercise connect-timeout/failure paths
// without a live backend.
func New(cfg Config, selector *backend.Selector, monitor *backend.HealthMonitor, resolver *backend.Resolver, dialer Dialer, logger *slog.Logger, stats StatsRecorder) *TcpProxy {
	if dialer == nil {
		dialer = NewNetDialer()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if stats == nil {
		stats = noopStats{}
	}

	var sem chan struct{}
	if cfg.MaxConcurrentConnections > 0 {
		sem = make(chan struct{}, cfg.MaxConcurrentConnections)
	}

	return &TcpProxy{
		cfg:      cfg,
		selector: selector,
		monitor:  monitor,
		resolver: resolver,
		dialer:   dialer,
		logger:   logger,
		stats:    stats,
		sem:      sem,
	}
}

// Start binds the configured listen address and spawns the accept loop.
// It returns once the listener is bound; the accept loop runs in the
// background until Stop is called.
func (p *TcpProxy) Start() error {
	addr := net.JoinHostPort(p.cfg.ListenAddress, fmt.Sprintf("%d", p.cfg.ListenPort))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("proxy: listen on %s: %w", addr, err)
	}
	p.listener = ln

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.logger.Info("proxy listening", "address", addr)

	p.wg.Add(1)
	go p.acceptLoop()
	return nil
}

// Stop signals the accept loop and all in-flight handlers to terminate,
// closes the listener, and waits for the accept loop and every in-flight
// handler to return. In-flight
// forwarding sessions are not forcibly torn down beyond having their
// sockets unblocked via forward.Forward's shared cancellation.
func (p *TcpProxy) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	if p.listener != nil {
		_ = p.listener.Close()
	}
	p.wg.Wait()
}

// Addr returns the bound listener address. Only valid after Start.
func (p *TcpProxy) Addr() net.Addr { return p.listener.Addr() }

func (p *TcpProxy) acceptLoop() {
	defer p.wg.Done()

	for {
		conn, err := p.listener.Accept()
		if err != nil {
			select {
			case <-p.ctx.Done():
				return
			default:
				p.logger.Error("accept failed", "error", err)
				continue
			}
		}

		if p.sem != nil {
			select {
			case p.sem <- struct{}{}:
			case <-p.ctx.Done():
				_ = conn.Close()
				return
			}
		}

		p.stats.IncAccepted()
		p.wg.Add(1)
		go p.handle(conn)
	}
}

func (p *TcpProxy) handle(client net.Conn) {
	defer p.wg.Done()
	defer func() {
		if p.sem != nil {
			<-p.sem
		}
	}()
	defer func() { _ = client.Close() }()

	sessionID := uuid.New().String()
	log := p.logger.With("session_id", sessionID, "client", client.RemoteAddr().String())

	b, ok := p.selector.SelectBackend()
	if !ok {
		log.Warn("no healthy backends available")
		p.stats.IncRejected()
		return
	}
	log = log.With("backend", b.Name)

	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.ConnectTimeout)
	defer cancel()

	backendConn, err := p.dialBackend(ctx, b)
	if err != nil {
		log.Error("backend connect failed", "address", b.Address, "port", b.Port, "error", err)
		p.monitor.RecordFailure(b)
		p.stats.IncFailed()
		return
	}
	defer func() { _ = backendConn.Close() }()

	log.Debug("forwarding session started")
	err = forward.Forward(p.ctx, client, backendConn, log)
	if err != nil {
		log.Error("forwarding fault", "error", err)
		p.monitor.RecordFailure(b)
		p.stats.IncFailed()
		return
	}

	log.Debug("forwarding session complete")
	p.monitor.RecordSuccess(b)
	p.stats.IncForwarded()
}

func (p *TcpProxy) dialBackend(ctx context.Context, b *backend.Backend) (net.Conn, error) {
	host := b.Address
	if p.resolver != nil {
		ip, err := p.resolver.Resolve(ctx, b.Address)
		if err != nil {
			return nil, err
		}
		host = ip.String()
	}
	address := net.JoinHostPort(host, fmt.Sprintf("%d", b.Port))

	conn, err := p.dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("proxy: connect to %s timed out: %w", address, err)
		}
		return nil, err
	}
	return conn, nil
}
