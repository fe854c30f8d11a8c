// Package dto holds the wire payloads exchanged over the message-created
// bus between the send handler and the delivery pipeline.
package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/utc2/chat-delivery-service/internal/domain/model"
)

// MessageCreatedV1 is the bus payload published after a message is
// persisted. Exactly one of ReceiverID/RoomID is set, mirroring the domain
// invariant.
type MessageCreatedV1 struct {
	MessageID  string `json:"message_id"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id,omitempty"`
	RoomID     string `json:"room_id,omitempty"`
	Body       string `json:"body"`
	OccurredAt string `json:"occurred_at"`
}

// FromDomain maps a persisted message to its bus payload.
func FromDomain(m *model.Message) *MessageCreatedV1 {
	d := &MessageCreatedV1{
		MessageID:  m.ID.String(),
		SenderID:   m.SenderID.String(),
		Body:       m.Body,
		OccurredAt: m.CreatedAt.Format(time.RFC3339Nano),
	}
	if m.ReceiverID != nil {
		d.ReceiverID = m.ReceiverID.String()
	}
	if m.RoomID != nil {
		d.RoomID = m.RoomID.String()
	}
	return d
}

// ToDomain rebuilds the domain message. Malformed identifiers degrade to the
// zero UUID, which Validate upstream of any side effect rejects.
func (d *MessageCreatedV1) ToDomain() *model.Message {
	m := &model.Message{
		ID:        safeParseUUID(d.MessageID),
		SenderID:  safeParseUUID(d.SenderID),
		Body:      d.Body,
		CreatedAt: safeParseRFC3339(d.OccurredAt),
	}
	if d.ReceiverID != "" {
		id := safeParseUUID(d.ReceiverID)
		m.ReceiverID = &id
	}
	if d.RoomID != "" {
		id := safeParseUUID(d.RoomID)
		m.RoomID = &id
	}
	return m
}

func safeParseUUID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func safeParseRFC3339(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}
