package admin

import (
	"context"
	"log/slog"
)

// Event is one health-state transition, as published on the /events
// WebSocket stream.
type Event struct {
	Backend   string `json:"backend"`
	Healthy   bool   `json:"healthy"`
	Timestamp string `json:"timestamp"`
}

// EventHandler wraps a base slog.Handler and additionally publishes every
// "backend marked healthy"/"backend marked unhealthy" record (emitted by
// backend.HealthMonitor, see SPEC_FULL.md §4.9) to the admin hub's
// connected WebSocket clients. It never alters or drops a record — every
// log line still reaches the base handler unchanged.
type EventHandler struct {
	base slog.Handler
	hub  *Hub
}

// NewEventHandler wraps base, fanning health-transition records out to hub.
func NewEventHandler(base slog.Handler, hub *Hub) *EventHandler {
	return &EventHandler{base: base, hub: hub}
}

func (h *EventHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *EventHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Message == "backend marked healthy" || r.Message == "backend marked unhealthy" {
		var ev Event
		ev.Healthy = r.Message == "backend marked healthy"
		ev.Timestamp = r.Time.Format("2006-01-02T15:04:05.000Z07:00")
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == "backend" {
				ev.Backend = a.Value.String()
			}
			return true
		})
		h.hub.Publish(ev)
	}
	return h.base.Handle(ctx, r)
}

func (h *EventHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &EventHandler{base: h.base.WithAttrs(attrs), hub: h.hub}
}

func (h *EventHandler) WithGroup(name string) slog.Handler {
	return &EventHandler{base: h.base.WithGroup(name), hub: h.hub}
}
