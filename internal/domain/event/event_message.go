package event

import (
	"github.com/google/uuid"

	"github.com/utc2/chat-delivery-service/internal/domain/model"
)

// Interface guard
var _ Eventer = (*MessageEvent)(nil)

// MessageEvent wraps one persisted message for delivery to one addressee.
//
// It distinguishes the business participants (message.SenderID, ReceiverID or
// RoomID) from the routing target (userID): a room message fans out into one
// MessageEvent per connected member, each carrying the same payload but a
// different addressee.
type MessageEvent struct {
	message *model.Message
	userID  uuid.UUID
	cached  any
}

// NewMessageEvent binds an enriched message to a single addressee.
func NewMessageEvent(msg *model.Message, userID uuid.UUID) *MessageEvent {
	return &MessageEvent{
		message: msg,
		userID:  userID,
	}
}

func (e *MessageEvent) GetID() string        { return e.message.ID.String() }
func (e *MessageEvent) GetKind() Kind        { return MessageCreated }
func (e *MessageEvent) GetUserID() uuid.UUID { return e.userID }
func (e *MessageEvent) GetOccurredAt() int64 { return e.message.CreatedAt.UnixMilli() }
func (e *MessageEvent) GetPayload() any      { return e.message }
func (e *MessageEvent) GetCached() any       { return e.cached }
func (e *MessageEvent) SetCached(v any)      { e.cached = v }
