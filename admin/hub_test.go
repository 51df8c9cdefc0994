package admin_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/smalldave/l4lb/admin"
)

var _ = Describe("Hub", func() {
	It("does not panic publishing or shutting down with no connected clients", func() {
		hub := admin.NewHub()
		Expect(func() {
			hub.Publish(admin.Event{Backend: "B1", Healthy: false})
			hub.Shutdown()
		}).NotTo(Panic())
	})

	It("streams a published event to a connected websocket client", func() {
		gin.SetMode(gin.TestMode)
		hub := admin.NewHub()
		r := gin.New()
		r.GET("/events", hub.Handler(nil))

		srv := httptest.NewServer(r)
		defer srv.Close()

		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()

		// The server registers the connection with the hub just after the
		// handshake completes, slightly after Dial returns client-side, so
		// keep publishing until registration has happened and one publish
		// lands.
		stopPublishing := make(chan struct{})
		defer close(stopPublishing)
		go func() {
			ticker := time.NewTicker(10 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-stopPublishing:
					return
				case <-ticker.C:
					hub.Publish(admin.Event{Backend: "B1", Healthy: true, Timestamp: "now"})
				}
			}
		}()

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, payload, err := conn.ReadMessage()
		Expect(err).NotTo(HaveOccurred())

		var ev admin.Event
		Expect(json.Unmarshal(payload, &ev)).To(Succeed())
		Expect(ev.Backend).To(Equal("B1"))
		Expect(ev.Healthy).To(BeTrue())

		hub.Shutdown()
	})
})
