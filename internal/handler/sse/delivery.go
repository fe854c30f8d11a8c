// Package sse serves the primary push channel: a unidirectional, long-lived
// server-to-client event stream tied to one request's lifetime.
package sse

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/utc2/chat-delivery-service/config"
	"github.com/utc2/chat-delivery-service/infra/server/http/middleware"
	"github.com/utc2/chat-delivery-service/internal/domain/event"
	"github.com/utc2/chat-delivery-service/internal/domain/model"
	pushmarshaller "github.com/utc2/chat-delivery-service/internal/handler/marshaller/push"
	"github.com/utc2/chat-delivery-service/internal/service"
)

type SSEHandler struct {
	logger    *slog.Logger
	deliverer service.Deliverer
	heartbeat time.Duration
}

func NewSSEHandler(logger *slog.Logger, deliverer service.Deliverer, cfg *config.Config) *SSEHandler {
	return &SSEHandler{
		logger:    logger,
		deliverer: deliverer,
		heartbeat: cfg.Delivery.HeartbeatInterval,
	}
}

func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// The channel lives exactly as long as this request. Registering it
	// replaces any prior entry for the identity; that prior channel's owner
	// discovers the hand-over through its own next write failure.
	conn, err := h.deliverer.Subscribe(r.Context(), identity)
	if err != nil {
		http.Error(w, "failed to subscribe", http.StatusInternalServerError)
		return
	}
	defer h.deliverer.Unsubscribe(identity, conn)

	l := h.logger.With("identity", identity, "conn_id", conn.GetID())
	l.Info("sse channel opened")
	defer l.Info("sse channel closed")

	welcome := event.NewSystemEvent(identity, event.Connected, &model.ConnectedPayload{
		Identity:      identity.String(),
		ConnectionID:  conn.GetID().String(),
		ServerVersion: model.ServerVersion,
	})
	if err := writeEvent(w, flusher, welcome); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			// Peer disconnect or server shutdown.
			return
		case <-conn.Done():
			return

		case <-ticker.C:
			ping := event.NewSystemEvent(identity, event.Ping, &model.PingPayload{
				Timestamp: time.Now().UnixMilli(),
			})
			if err := writeEvent(w, flusher, ping); err != nil {
				l.Debug("sse heartbeat failed", "err", err)
				return
			}

		case ev := <-conn.Recv():
			if err := writeEvent(w, flusher, ev); err != nil {
				l.Warn("sse send failed", "err", err, "event_id", ev.GetID())
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, ev event.Eventer) error {
	data, err := pushmarshaller.MarshalDeliveryEvent(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
