package event

import "github.com/google/uuid"

type Kind int16

const (
	Connected      Kind = iota + 1 // system: subscription handshake
	MessageCreated                 // business: persisted chat message
	Ping                           // system: liveness tick
)

// String is used for logging and wire type discrimination.
func (k Kind) String() string {
	switch k {
	case Connected:
		return "connected"
	case MessageCreated:
		return "message"
	case Ping:
		return "ping"
	default:
		return "unknown"
	}
}

// Eventer is the contract for every data packet flowing down a push channel.
// A delivery event carries no sequencing or acknowledgement metadata: it is
// attempted at most once per registered channel and never redelivered.
type Eventer interface {
	GetID() string
	GetKind() Kind
	// GetUserID is the physical addressee of this event instance, i.e. the
	// registry key under which the target channel is looked up.
	GetUserID() uuid.UUID
	GetOccurredAt() int64
	GetPayload() any

	// GetCached and SetCached let marshalling layers serialize an event
	// once even when it fans out to several addressees.
	GetCached() any
	SetCached(any)
}
