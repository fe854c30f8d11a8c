package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/utc2/chat-delivery-service/config"
	"github.com/utc2/chat-delivery-service/infra/server/http/middleware"
	"github.com/utc2/chat-delivery-service/internal/domain/event"
	"github.com/utc2/chat-delivery-service/internal/domain/model"
	pushmarshaller "github.com/utc2/chat-delivery-service/internal/handler/marshaller/push"
	"github.com/utc2/chat-delivery-service/internal/service"
)

const writeWait = 10 * time.Second

// WSHandler serves the WebSocket flavor of the push channel.
type WSHandler struct {
	logger    *slog.Logger
	deliverer service.Deliverer
	heartbeat time.Duration
	upgrader  websocket.Upgrader
}

func NewWSHandler(logger *slog.Logger, deliverer service.Deliverer, cfg *config.Config) *WSHandler {
	return &WSHandler{
		logger:    logger,
		deliverer: deliverer,
		heartbeat: cfg.Delivery.HeartbeatInterval,
		upgrader: websocket.Upgrader{
			// Session auth already gates this endpoint; the portal frontend
			// and API clients are not same-origin in every deployment.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "err", err)
		return
	}
	defer ws.Close()

	conn, err := h.deliverer.Subscribe(r.Context(), identity)
	if err != nil {
		return
	}
	// Guaranteed cleanup on every exit path: compare-and-delete the registry
	// entry and close the channel.
	defer h.deliverer.Unsubscribe(identity, conn)

	l := h.logger.With("identity", identity, "conn_id", conn.GetID())
	l.Info("ws channel opened")
	defer l.Info("ws channel closed")

	// The inbound channel is push-only; the read pump exists to observe
	// close frames and peer disconnects.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		ws.SetReadLimit(512)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	welcome := event.NewSystemEvent(identity, event.Connected, &model.ConnectedPayload{
		Identity:      identity.String(),
		ConnectionID:  conn.GetID().String(),
		ServerVersion: model.ServerVersion,
	})
	if err := h.write(ws, welcome); err != nil {
		l.Warn("ws handshake failed", "err", err)
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-readerDone:
			return
		case <-conn.Done():
			// Closed by unsubscribe elsewhere or hub shutdown.
			return

		case <-ticker.C:
			ping := event.NewSystemEvent(identity, event.Ping, &model.PingPayload{
				Timestamp: time.Now().UnixMilli(),
			})
			if err := h.write(ws, ping); err != nil {
				// Routine: the dead channel is reaped by the deferred
				// unsubscribe, not surfaced anywhere.
				l.Debug("ws heartbeat failed", "err", err)
				return
			}

		case ev := <-conn.Recv():
			if err := h.write(ws, ev); err != nil {
				l.Warn("ws send failed", "err", err, "event_id", ev.GetID())
				return
			}
		}
	}
}

func (h *WSHandler) write(ws *websocket.Conn, ev event.Eventer) error {
	data, err := pushmarshaller.MarshalDeliveryEvent(ev)
	if err != nil {
		return err
	}
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteMessage(websocket.TextMessage, data)
}
