package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidAddressing is returned when a message does not name exactly one
// of {receiver, room}.
var ErrInvalidAddressing = errors.New("message must address exactly one receiver or one room")

// Message is the core conversation entity. It is immutable once persisted;
// the only mutable attribute is the read flag, and that is owned by the
// read-state reconciler, never by the delivery path.
type Message struct {
	ID       uuid.UUID
	SenderID uuid.UUID

	// Exactly one of ReceiverID (direct message) or RoomID (room message)
	// is set. Validate enforces this before persistence.
	ReceiverID *uuid.UUID
	RoomID     *uuid.UUID

	Body      string
	CreatedAt time.Time
	Read      bool

	// SenderName is resolved at delivery/query time from the directory;
	// it is never persisted with the message.
	SenderName string
}

// IsDirect reports whether the message addresses a single receiver.
func (m *Message) IsDirect() bool { return m.ReceiverID != nil }

// IsRoom reports whether the message addresses a room.
func (m *Message) IsRoom() bool { return m.RoomID != nil }

// Validate checks the exactly-one-of addressing invariant.
func (m *Message) Validate() error {
	if m.SenderID == uuid.Nil {
		return errors.New("message sender is required")
	}
	if (m.ReceiverID == nil) == (m.RoomID == nil) {
		return ErrInvalidAddressing
	}
	if m.ReceiverID != nil && *m.ReceiverID == uuid.Nil {
		return errors.New("message receiver is empty")
	}
	if m.RoomID != nil && *m.RoomID == uuid.Nil {
		return errors.New("message room is empty")
	}
	if m.Body == "" {
		return errors.New("message body is empty")
	}
	return nil
}
