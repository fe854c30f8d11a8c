// Package store is the message-store collaborator boundary: the durable,
// queryable record of messages, rooms, and sessions. The delivery core only
// appends to it and reads membership; it remains the source of truth that
// offline recipients reconcile against by polling.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/utc2/chat-delivery-service/internal/domain/model"
)

var (
	// ErrSessionNotFound is returned by ResolveSession for unknown or
	// expired tokens. Auth fails closed on it.
	ErrSessionNotFound = errors.New("store: session not found")

	// ErrUserNotFound is returned by DisplayName for unknown identities.
	ErrUserNotFound = errors.New("store: user not found")
)

// PersistInput describes one message append. Exactly one of ReceiverID or
// RoomID must be set; Validate on the resulting message enforces it upstream.
type PersistInput struct {
	SenderID   uuid.UUID
	ReceiverID *uuid.UUID
	RoomID     *uuid.UUID
	Body       string
	Now        time.Time
}

// MessageStore persists and queries messages and read state.
//
// MarkRead/MarkRoomRead are idempotent: re-invoking on an already-read set is
// a no-op and returns zero flipped rows. Unread counts are recomputed by
// query, never maintained as running counters.
type MessageStore interface {
	Persist(ctx context.Context, in PersistInput) (*model.Message, error)

	// ListRoomMembers is read fresh at broadcast time, so membership
	// changes take effect on the next message.
	ListRoomMembers(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error)

	MarkRead(ctx context.Context, reader, peer uuid.UUID) (int64, error)
	MarkRoomRead(ctx context.Context, reader, roomID uuid.UUID) (int64, error)
	UnreadCount(ctx context.Context, reader, peer uuid.UUID) (int, error)
	UnreadRoomCount(ctx context.Context, reader, roomID uuid.UUID) (int, error)

	// UnreadCounts aggregates the reader's unread direct messages per peer
	// in one query, for the conversation list view.
	UnreadCounts(ctx context.Context, reader uuid.UUID) (map[uuid.UUID]int, error)

	ListConversation(ctx context.Context, reader, peer uuid.UUID, limit int) ([]*model.Message, error)
	ListRoomMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]*model.Message, error)
}

// Directory resolves display names for identities. The enricher consults it
// behind an LRU cache and a circuit breaker.
type Directory interface {
	DisplayName(ctx context.Context, id uuid.UUID) (string, error)
}

// SessionStore resolves bearer tokens to identities.
type SessionStore interface {
	ResolveSession(ctx context.Context, token string) (uuid.UUID, error)
}

// Store is the full collaborator surface the delivery core consumes.
type Store interface {
	MessageStore
	Directory
	SessionStore
}
