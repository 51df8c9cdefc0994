package e2e

import (
	"bufio"
	"fmt"
	"net"
	"time"

	. "github.com/onsi/gomega"

	"github.com/smalldave/l4lb/backend"
	"github.com/smalldave/l4lb/proxy"
)

// startEchoBackend binds addr and echoes "[<name>] <line>" for every
// newline-terminated line it reads from a client, until the connection
// closes.
func startEchoBackend(addr, name string) *net.TCPListener {
	ln, err := net.Listen("tcp", addr)
	Expect(err).NotTo(HaveOccurred())
	tcpLn := ln.(*net.TCPListener)

	go func() {
		for {
			conn, err := tcpLn.Accept()
			if err != nil {
				return
			}
			go serveEcho(conn, name)
		}
	}()
	return tcpLn
}

func serveEcho(conn net.Conn, name string) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			_, _ = conn.Write([]byte(fmt.Sprintf("[%s] %s", name, line)))
		}
		if err != nil {
			return
		}
	}
}

// startSlowBackend binds addr, reads one request line, then writes 5 parts
// 50ms apart followed by a completion marker, then closes.
func startSlowBackend(addr string) *net.TCPListener {
	ln, err := net.Listen("tcp", addr)
	Expect(err).NotTo(HaveOccurred())
	tcpLn := ln.(*net.TCPListener)

	go func() {
		conn, err := tcpLn.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		_, _ = r.ReadString('\n')

		for i := 1; i <= 5; i++ {
			_, _ = conn.Write([]byte(fmt.Sprintf("part-%d\n", i)))
			time.Sleep(50 * time.Millisecond)
		}
		_, _ = conn.Write([]byte("COMPLETE\n"))
	}()
	return tcpLn
}

// dialProxy opens a raw TCP connection to the running proxy.
func dialProxy(p *proxy.TcpProxy) net.Conn {
	conn, err := net.Dial("tcp", p.Addr().String())
	Expect(err).NotTo(HaveOccurred())
	return conn
}

// newProxy wires a fresh pool/selector/monitor into a started TcpProxy
// listening on an ephemeral port. No resolver is given, so backend
// addresses are dialled as written.
func newProxy(backends []*backend.Backend, failureThreshold, successThreshold int) (*proxy.TcpProxy, *backend.Pool) {
	pool := backend.NewPool(backends)
	selector := backend.NewSelector(pool)
	monitor := backend.NewHealthMonitor(backend.Config{
		FailureThreshold: failureThreshold,
		SuccessThreshold: successThreshold,
	}, nil)

	p := proxy.New(proxy.Config{
		ListenAddress:  "127.0.0.1",
		ListenPort:     0,
		ConnectTimeout: time.Second,
	}, selector, monitor, nil, nil, nil, nil)
	Expect(p.Start()).To(Succeed())
	return p, pool
}
