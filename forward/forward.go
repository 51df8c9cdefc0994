// Package forward implements bidirectional byte copying between two
// connected TCP sockets, with TCP half-close propagation and a shared
// cancellation scope for the two copy directions.
package forward

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// bufferSize is the size of the per-direction buffer handed to
// io.CopyBuffer. A design constant, not a required configuration surface.
// io.CopyBuffer leaves the buffer unused when the source implements
// io.WriterTo or the destination io.ReaderFrom, as *net.TCPConn does.
const bufferSize = 8 * 1024

// halfCloser is satisfied by *net.TCPConn. Forwarding still works against
// a net.Conn that does not implement it (e.g. in tests using net.Pipe);
// the half-close step is then simply skipped.
type halfCloser interface {
	CloseWrite() error
}

// Forward copies bytes bidirectionally between client and backend until
// both directions have finished. A direction finishes normally when its
// source returns EOF, at which point the destination's write side is
// half-closed (CloseWrite) so the FIN propagates while the reverse
// direction keeps flowing. A socket-level error on either direction
// cancels the shared scope, which forces both directions to unblock and
// return; cancellation is swallowed rather than surfaced as an error.
// Forward never closes either socket — that remains the caller's
// responsibility once it returns.
func Forward(ctx context.Context, client, backendConn net.Conn, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	// There is no generic cancelable Read on net.Conn. The canonical
	// workaround is to force any in-flight Read/Write to return by
	// clearing the deadline into the past once the shared scope is
	// cancelled — this unblocks the sibling direction without closing
	// the underlying file descriptor, which the caller still owns.
	unblock := make(chan struct{})
	go func() {
		select {
		case <-gctx.Done():
			past := time.Now().Add(-time.Second)
			_ = client.SetDeadline(past)
			_ = backendConn.SetDeadline(past)
		case <-unblock:
		}
	}()

	g.Go(func() error { return copyDirection(gctx, backendConn, client, "client->backend", logger) })
	g.Go(func() error { return copyDirection(gctx, client, backendConn, "backend->client", logger) })

	err := g.Wait()
	close(unblock)

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// copyDirection copies from src to dst until src returns EOF (normal
// completion, followed by a half-close of dst) or an error occurs. If
// ctx is already cancelled by the time an error surfaces, the error is
// reported as context.Canceled regardless of its concrete cause — it is
// this direction cooperating with a fault or shutdown observed on the
// other side, not a new fault of its own.
func copyDirection(ctx context.Context, dst, src net.Conn, label string, logger *slog.Logger) error {
	buf := make([]byte, bufferSize)
	n, err := io.CopyBuffer(dst, src, buf)
	if err != nil {
		select {
		case <-ctx.Done():
			return context.Canceled
		default:
			logger.Error("forwarding fault", "direction", label, "bytes_copied", humanize.Bytes(uint64(n)), "error", err)
			return err
		}
	}

	logger.Debug("forwarding direction complete", "direction", label, "bytes_copied", humanize.Bytes(uint64(n)))
	if hc, ok := dst.(halfCloser); ok {
		// The peer may have already closed; shutdown errors are swallowed.
		_ = hc.CloseWrite()
	}
	return nil
}
