package forward_test

import (
	"bytes"
	"context"
	"io"
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/smalldave/l4lb/forward"
)

// tcpPair returns two ends of a real loopback TCP connection, so the
// half-close behaviour under test (CloseWrite on *net.TCPConn) is
// actually exercised rather than stubbed.
func tcpPair() (a, b *net.TCPConn) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		Expect(err).NotTo(HaveOccurred())
		accepted <- conn
	}()

	dialed, err := net.Dial("tcp", ln.Addr().String())
	Expect(err).NotTo(HaveOccurred())

	return dialed.(*net.TCPConn), (<-accepted).(*net.TCPConn)
}

var _ = Describe("Forward", func() {
	It("relays bytes in both directions", func() {
		clientSide, clientPeer := tcpPair()
		backendSide, backendPeer := tcpPair()
		defer clientPeer.Close()
		defer backendPeer.Close()

		done := make(chan error, 1)
		go func() {
			done <- forward.Forward(context.Background(), clientSide, backendSide, nil)
		}()

		_, err := clientPeer.Write([]byte("hello from client\n"))
		Expect(err).NotTo(HaveOccurred())

		buf := make([]byte, 64)
		n, err := backendPeer.Read(buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(buf[:n])).To(Equal("hello from client\n"))

		_, err = backendPeer.Write([]byte("hello from backend\n"))
		Expect(err).NotTo(HaveOccurred())

		n, err = clientPeer.Read(buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(buf[:n])).To(Equal("hello from backend\n"))

		Expect(clientPeer.Close()).To(Succeed())
		Expect(backendPeer.Close()).To(Succeed())

		Eventually(done, 2*time.Second).Should(Receive(BeNil()))
	})

	It("propagates a half-close: EOF on one side closes the write half of the other", func() {
		clientSide, clientPeer := tcpPair()
		backendSide, backendPeer := tcpPair()
		defer backendPeer.Close()

		done := make(chan error, 1)
		go func() {
			done <- forward.Forward(context.Background(), clientSide, backendSide, nil)
		}()

		Expect(clientPeer.Close()).To(Succeed())

		buf := make([]byte, 16)
		backendPeer.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, err := backendPeer.Read(buf)
		Expect(n).To(Equal(0))
		Expect(err).To(Equal(io.EOF))

		Expect(backendPeer.Close()).To(Succeed())
		Eventually(done, 2*time.Second).Should(Receive(BeNil()))
	})

	It("swallows cancellation of the shared context as a nil error", func() {
		clientSide, clientPeer := tcpPair()
		backendSide, backendPeer := tcpPair()
		defer clientPeer.Close()
		defer backendPeer.Close()
		defer clientSide.Close()
		defer backendSide.Close()

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- forward.Forward(ctx, clientSide, backendSide, nil)
		}()

		cancel()
		Eventually(done, 2*time.Second).Should(Receive(BeNil()))
	})

	It("surfaces a genuine socket fault as a non-nil error", func() {
		clientSide, clientPeer := tcpPair()
		backendSide, backendPeer := tcpPair()
		defer clientPeer.Close()
		defer clientSide.Close()
		defer backendSide.Close()

		done := make(chan error, 1)
		go func() {
			done <- forward.Forward(context.Background(), clientSide, backendSide, nil)
		}()

		// A zero linger timeout followed by Close sends a TCP RST instead
		// of a clean FIN, producing a real read error on the peer rather
		// than an orderly EOF.
		backendPeer.SetLinger(0)
		Expect(backendPeer.Close()).To(Succeed())

		_, err := clientPeer.Write(bytes.Repeat([]byte{0x01}, 4096))
		_ = err // the write itself may or may not fail depending on timing

		Eventually(done, 2*time.Second).Should(Receive(HaveOccurred()))
	})
})
