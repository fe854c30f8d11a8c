package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/utc2/chat-delivery-service/internal/domain/model"
)

// Interface guard
var _ Store = (*Memory)(nil)

// Memory is the in-memory Store used by tests and the dev profile
// (store.kind=memory). Semantics match the Postgres implementation.
type Memory struct {
	mu          sync.RWMutex
	messages    []*model.Message
	roomMembers map[uuid.UUID][]uuid.UUID
	users       map[uuid.UUID]string
	sessions    map[string]uuid.UUID
}

func NewMemory() *Memory {
	return &Memory{
		roomMembers: make(map[uuid.UUID][]uuid.UUID),
		users:       make(map[uuid.UUID]string),
		sessions:    make(map[string]uuid.UUID),
	}
}

// SeedUser registers a user with a display name.
func (m *Memory) SeedUser(id uuid.UUID, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = name
}

// SeedRoomMember adds an identity to a room's membership.
func (m *Memory) SeedRoomMember(roomID, userID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roomMembers[roomID] = append(m.roomMembers[roomID], userID)
}

// SeedSession maps a bearer token to an identity.
func (m *Memory) SeedSession(token string, userID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = userID
}

func (m *Memory) Persist(ctx context.Context, in PersistInput) (*model.Message, error) {
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	msg := &model.Message{
		ID:         uuid.New(),
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		RoomID:     in.RoomID,
		Body:       in.Body,
		CreatedAt:  now,
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.mu.Unlock()

	out := *msg
	return &out, nil
}

func (m *Memory) ListRoomMembers(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members := m.roomMembers[roomID]
	out := make([]uuid.UUID, len(members))
	copy(out, members)
	return out, nil
}

func (m *Memory) MarkRead(ctx context.Context, reader, peer uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var flipped int64
	for _, msg := range m.messages {
		if msg.IsDirect() && msg.SenderID == peer && *msg.ReceiverID == reader && !msg.Read {
			msg.Read = true
			flipped++
		}
	}
	return flipped, nil
}

func (m *Memory) MarkRoomRead(ctx context.Context, reader, roomID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var flipped int64
	for _, msg := range m.messages {
		if msg.IsRoom() && *msg.RoomID == roomID && msg.SenderID != reader && !msg.Read {
			msg.Read = true
			flipped++
		}
	}
	return flipped, nil
}

func (m *Memory) UnreadCount(ctx context.Context, reader, peer uuid.UUID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, msg := range m.messages {
		if msg.IsDirect() && msg.SenderID == peer && *msg.ReceiverID == reader && !msg.Read {
			count++
		}
	}
	return count, nil
}

func (m *Memory) UnreadCounts(ctx context.Context, reader uuid.UUID) (map[uuid.UUID]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[uuid.UUID]int)
	for _, msg := range m.messages {
		if msg.IsDirect() && *msg.ReceiverID == reader && !msg.Read {
			counts[msg.SenderID]++
		}
	}
	return counts, nil
}

func (m *Memory) UnreadRoomCount(ctx context.Context, reader, roomID uuid.UUID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, msg := range m.messages {
		if msg.IsRoom() && *msg.RoomID == roomID && msg.SenderID != reader && !msg.Read {
			count++
		}
	}
	return count, nil
}

func (m *Memory) ListConversation(ctx context.Context, reader, peer uuid.UUID, limit int) ([]*model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.Message
	for _, msg := range m.messages {
		if !msg.IsDirect() {
			continue
		}
		between := (msg.SenderID == reader && *msg.ReceiverID == peer) ||
			(msg.SenderID == peer && *msg.ReceiverID == reader)
		if between {
			c := *msg
			out = append(out, &c)
		}
	}
	return clampSorted(out, limit), nil
}

func (m *Memory) ListRoomMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]*model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.Message
	for _, msg := range m.messages {
		if msg.IsRoom() && *msg.RoomID == roomID {
			c := *msg
			out = append(out, &c)
		}
	}
	return clampSorted(out, limit), nil
}

func (m *Memory) DisplayName(ctx context.Context, id uuid.UUID) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name, ok := m.users[id]
	if !ok {
		return "", ErrUserNotFound
	}
	return name, nil
}

func (m *Memory) ResolveSession(ctx context.Context, token string) (uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.sessions[token]
	if !ok {
		return uuid.Nil, ErrSessionNotFound
	}
	return id, nil
}

// clampSorted orders ascending by creation time and keeps the newest `limit`
// entries, matching the Postgres queries.
func clampSorted(msgs []*model.Message, limit int) []*model.Message {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs
}
