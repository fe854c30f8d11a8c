package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/utc2/chat-delivery-service/infra/server/http/middleware"
)

type unreadResponse struct {
	UnreadCount int `json:"unread_count"`
}

type markReadResponse struct {
	Updated int64 `json:"updated"`
}

type unreadCountsResponse struct {
	UnreadCounts map[string]int `json:"unread_counts"`
}

// UnreadCounts aggregates the caller's unread counters across all direct
// peers in one call, for the conversation list.
func (h *Handler) UnreadCounts(w http.ResponseWriter, r *http.Request) {
	reader, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "no session")
		return
	}

	counts, err := h.readstate.UnreadCounts(r.Context(), reader)
	if err != nil {
		h.logger.Error("unread counts failed", "reader", reader, "err", err)
		h.respondError(w, http.StatusInternalServerError, "unread counts unavailable")
		return
	}

	out := make(map[string]int, len(counts))
	for peer, n := range counts {
		out[peer.String()] = n
	}
	h.respondJSON(w, http.StatusOK, unreadCountsResponse{UnreadCounts: out})
}

// UnreadCount recomputes the caller's unread counter against one peer. The
// count is always derived by query, so it self-corrects after any missed
// push.
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	reader, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "no session")
		return
	}
	peer, err := uuid.Parse(chi.URLParam(r, "peer"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid peer id")
		return
	}

	n, err := h.readstate.UnreadCount(r.Context(), reader, peer)
	if err != nil {
		h.logger.Error("unread count failed", "reader", reader, "peer", peer, "err", err)
		h.respondError(w, http.StatusInternalServerError, "unread count unavailable")
		return
	}
	h.respondJSON(w, http.StatusOK, unreadResponse{UnreadCount: n})
}

func (h *Handler) UnreadRoomCount(w http.ResponseWriter, r *http.Request) {
	reader, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "no session")
		return
	}
	roomID, err := uuid.Parse(chi.URLParam(r, "room"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid room id")
		return
	}

	n, err := h.readstate.UnreadRoomCount(r.Context(), reader, roomID)
	if err != nil {
		h.logger.Error("room unread count failed", "reader", reader, "room", roomID, "err", err)
		h.respondError(w, http.StatusInternalServerError, "unread count unavailable")
		return
	}
	h.respondJSON(w, http.StatusOK, unreadResponse{UnreadCount: n})
}

// MarkConversationRead flips every unread message from peer to the caller.
// Idempotent, so clients retry it freely.
func (h *Handler) MarkConversationRead(w http.ResponseWriter, r *http.Request) {
	reader, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "no session")
		return
	}
	peer, err := uuid.Parse(chi.URLParam(r, "peer"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid peer id")
		return
	}

	flipped, err := h.readstate.MarkRead(r.Context(), reader, peer)
	if err != nil {
		h.logger.Error("mark read failed", "reader", reader, "peer", peer, "err", err)
		h.respondError(w, http.StatusInternalServerError, "mark read failed")
		return
	}
	h.respondJSON(w, http.StatusOK, markReadResponse{Updated: flipped})
}

func (h *Handler) MarkRoomRead(w http.ResponseWriter, r *http.Request) {
	reader, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "no session")
		return
	}
	roomID, err := uuid.Parse(chi.URLParam(r, "room"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid room id")
		return
	}

	flipped, err := h.readstate.MarkRoomRead(r.Context(), reader, roomID)
	if err != nil {
		h.logger.Error("mark room read failed", "reader", reader, "room", roomID, "err", err)
		h.respondError(w, http.StatusInternalServerError, "mark read failed")
		return
	}
	h.respondJSON(w, http.StatusOK, markReadResponse{Updated: flipped})
}
