package proxy

import (
	"context"
	"net"
)

//go:generate mockgen -destination=mocks/mock_dialer.go -package=mocks github.com/smalldave/l4lb/proxy Dialer

// Dialer opens an outbound connection. Satisfied in production by
// (*net.Dialer).DialContext and in tests by a generated mock
// (proxy/mocks), giving the connect step (spec: "create a new outbound
// TCP socket... attempt to connect") a seam that does not require a real
// listening backend to exercise timeout and failure paths.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// netDialer adapts *net.Dialer to the Dialer interface.
type netDialer struct {
	d *net.Dialer
}

// NewNetDialer returns a Dialer backed by the real network stack.
func NewNetDialer() Dialer {
	return &netDialer{d: &net.Dialer{}}
}

func (n *netDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return n.d.DialContext(ctx, network, address)
}
