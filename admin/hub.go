package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsKeepAliveInterval = 10 * time.Second
	wsReadDeadline      = 90 * time.Second
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
	CheckOrigin:      func(r *http.Request) bool { return true },
}

// Hub tracks every connected /events WebSocket client and fans out
// published Events to all of them. Modeled on this codebase's original
// WebSocket lifecycle hub: add/remove on connect/disconnect, a done
// channel closed once on Shutdown so every handler goroutine exits.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
	done  chan struct{}
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{
		conns: make(map[*websocket.Conn]struct{}),
		done:  make(chan struct{}),
	}
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
}

// Publish writes ev as one JSON line to every connected client. Slow or
// gone clients are best-effort: a write error just drops that client on
// its own read/keepalive loop, it does not block other clients.
func (h *Hub) Publish(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = conn.WriteMessage(websocket.TextMessage, payload)
	}
}

// Shutdown closes every connected client and signals handler goroutines
// to exit.
func (h *Hub) Shutdown() {
	close(h.done)
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second),
		)
		_ = conn.Close()
	}
	h.conns = make(map[*websocket.Conn]struct{})
}

// Handler returns a gin handler that upgrades the request to a WebSocket
// and streams published Events until the client disconnects or the hub
// shuts down.
func (h *Hub) Handler(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		h.add(conn)
		defer func() {
			h.remove(conn)
			_ = conn.Close()
		}()

		_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
			return nil
		})

		readErr := make(chan error, 1)
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					readErr <- err
					return
				}
			}
		}()

		ticker := time.NewTicker(wsKeepAliveInterval)
		defer ticker.Stop()

		for {
			select {
			case <-h.done:
				return
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					logger.Debug("admin ws: keepalive write error", "error", err)
					return
				}
			case err := <-readErr:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debug("admin ws: unexpected close", "error", err)
				}
				return
			}
		}
	}
}
