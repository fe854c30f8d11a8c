package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/utc2/chat-delivery-service/infra/server/http/middleware"
)

type presenceResponse struct {
	Identity string `json:"identity"`
	Online   bool   `json:"online"`
}

// Presence reports whether the identity currently holds a live push channel.
// It reflects registry membership only; a half-dead connection shows online
// until its next heartbeat write fails.
func (h *Handler) Presence(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.IdentityFrom(r.Context()); !ok {
		h.respondError(w, http.StatusUnauthorized, "no session")
		return
	}
	identity, err := uuid.Parse(chi.URLParam(r, "identity"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid identity")
		return
	}

	h.respondJSON(w, http.StatusOK, presenceResponse{
		Identity: identity.String(),
		Online:   h.hub.IsConnected(identity),
	})
}
