package event

import (
	"time"

	"github.com/google/uuid"
)

// Interface guard
var _ Eventer = (*SystemEvent)(nil)

// SystemEvent is a generic envelope for connection-scoped signals
// (connected handshake, heartbeat pings).
type SystemEvent struct {
	id         string
	userID     uuid.UUID
	kind       Kind
	occurredAt int64
	payload    any
	cached     any
}

// NewSystemEvent is the factory for any non-business signal.
func NewSystemEvent(userID uuid.UUID, kind Kind, payload any) *SystemEvent {
	return &SystemEvent{
		id:         uuid.NewString(),
		userID:     userID,
		kind:       kind,
		occurredAt: time.Now().UnixMilli(),
		payload:    payload,
	}
}

func (e *SystemEvent) GetID() string        { return e.id }
func (e *SystemEvent) GetKind() Kind        { return e.kind }
func (e *SystemEvent) GetUserID() uuid.UUID { return e.userID }
func (e *SystemEvent) GetOccurredAt() int64 { return e.occurredAt }
func (e *SystemEvent) GetPayload() any      { return e.payload }
func (e *SystemEvent) GetCached() any       { return e.cached }
func (e *SystemEvent) SetCached(v any)      { e.cached = v }
