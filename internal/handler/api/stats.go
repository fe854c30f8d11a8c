package api

import (
	"net/http"

	"github.com/utc2/chat-delivery-service/infra/server/http/middleware"
)

type statsResponse struct {
	Connections   int    `json:"connections"`
	Registered    uint64 `json:"registered_total"`
	Replaced      uint64 `json:"replaced_total"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// Stats snapshots the connection registry for the monitor command.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.IdentityFrom(r.Context()); !ok {
		h.respondError(w, http.StatusUnauthorized, "no session")
		return
	}

	s := h.hub.Stats()
	h.respondJSON(w, http.StatusOK, statsResponse{
		Connections:   s.Connections,
		Registered:    s.Registered,
		Replaced:      s.Replaced,
		UptimeSeconds: int64(s.Uptime.Seconds()),
	})
}
