package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/utc2/chat-delivery-service/infra/server/http/middleware"
	"github.com/utc2/chat-delivery-service/internal/adapter/pubsub"
	"github.com/utc2/chat-delivery-service/internal/adapter/store"
	"github.com/utc2/chat-delivery-service/internal/domain/model"
	pushmarshaller "github.com/utc2/chat-delivery-service/internal/handler/marshaller/push"
	"github.com/utc2/chat-delivery-service/internal/service/dto"
)

const maxBodyLength = 4096

type sendMessageRequest struct {
	ReceiverID string `json:"receiver_id,omitempty"`
	RoomID     string `json:"room_id,omitempty"`
	Body       string `json:"body"`
}

// SendMessage persists the message, then publishes the created event. Fan-out
// to live connections happens asynchronously on the bus; the 201 response
// only confirms durability.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	sender, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "no session")
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	body := strings.TrimSpace(req.Body)
	if body == "" {
		h.respondError(w, http.StatusBadRequest, "body is required")
		return
	}
	if len(body) > maxBodyLength {
		h.respondError(w, http.StatusBadRequest, "body too long")
		return
	}

	in := store.PersistInput{
		SenderID: sender,
		Body:     body,
		Now:      time.Now().UTC(),
	}
	switch {
	case req.ReceiverID != "" && req.RoomID != "":
		h.respondError(w, http.StatusBadRequest, "receiver_id and room_id are mutually exclusive")
		return
	case req.ReceiverID != "":
		id, err := uuid.Parse(req.ReceiverID)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid receiver_id")
			return
		}
		in.ReceiverID = &id
	case req.RoomID != "":
		id, err := uuid.Parse(req.RoomID)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid room_id")
			return
		}
		in.RoomID = &id
	default:
		h.respondError(w, http.StatusBadRequest, "receiver_id or room_id is required")
		return
	}

	msg, err := h.store.Persist(r.Context(), in)
	if err != nil {
		h.logger.Error("message persist failed", "sender", sender, "err", err)
		h.respondError(w, http.StatusInternalServerError, "message not stored")
		return
	}

	if err := h.dispatcher.Publish(r.Context(), pubsub.TopicMessageCreated, dto.FromDomain(msg)); err != nil {
		// The message is durable; live recipients will see it on their
		// next fetch even though the push never fires.
		h.logger.Error("message created publish failed", "message_id", msg.ID, "err", err)
	}

	h.respondJSON(w, http.StatusCreated, pushmarshaller.MapMessage(msg))
}

type listMessagesResponse struct {
	Messages []*pushmarshaller.WireMessage `json:"messages"`
}

// ListConversation returns the direct history between the caller and peer,
// oldest first, with sender display names resolved.
func (h *Handler) ListConversation(w http.ResponseWriter, r *http.Request) {
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

	msgs, err := h.store.ListConversation(r.Context(), reader, peer, parseLimit(r))
	if err != nil {
		h.logger.Error("conversation fetch failed", "reader", reader, "peer", peer, "err", err)
		h.respondError(w, http.StatusInternalServerError, "conversation unavailable")
		return
	}

	h.respondJSON(w, http.StatusOK, listMessagesResponse{Messages: h.enrichAll(r.Context(), msgs)})
}

// ListRoomMessages returns the room history, oldest first.
func (h *Handler) ListRoomMessages(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.IdentityFrom(r.Context()); !ok {
		h.respondError(w, http.StatusUnauthorized, "no session")
		return
	}
	roomID, err := uuid.Parse(chi.URLParam(r, "room"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid room id")
		return
	}

	msgs, err := h.store.ListRoomMessages(r.Context(), roomID, parseLimit(r))
	if err != nil {
		h.logger.Error("room fetch failed", "room", roomID, "err", err)
		h.respondError(w, http.StatusInternalServerError, "room history unavailable")
		return
	}

	h.respondJSON(w, http.StatusOK, listMessagesResponse{Messages: h.enrichAll(r.Context(), msgs)})
}

// enrichAll resolves sender display names for a history page. Resolution is
// best effort; a failed lookup leaves names empty rather than failing the
// page.
func (h *Handler) enrichAll(ctx context.Context, msgs []*model.Message) []*pushmarshaller.WireMessage {
	senders := make([]uuid.UUID, 0, len(msgs))
	for _, m := range msgs {
		senders = append(senders, m.SenderID)
	}

	names, err := h.enricher.ResolveMany(ctx, senders)
	if err != nil {
		h.logger.Warn("sender name resolution failed", "err", err)
		names = nil
	}

	out := make([]*pushmarshaller.WireMessage, 0, len(msgs))
	for _, m := range msgs {
		m.SenderName = names[m.SenderID]
		out = append(out, pushmarshaller.MapMessage(m))
	}
	return out
}

func parseLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
