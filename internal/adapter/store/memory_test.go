package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistValidatesAddressing(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	sender := uuid.New()
	receiver := uuid.New()
	room := uuid.New()

	tests := []struct {
		name    string
		in      PersistInput
		wantErr bool
	}{
		{
			name: "direct message",
			in:   PersistInput{SenderID: sender, ReceiverID: &receiver, Body: "hi"},
		},
		{
			name: "room message",
			in:   PersistInput{SenderID: sender, RoomID: &room, Body: "hi all"},
		},
		{
			name:    "no addressee",
			in:      PersistInput{SenderID: sender, Body: "lost"},
			wantErr: true,
		},
		{
			name:    "both addressees",
			in:      PersistInput{SenderID: sender, ReceiverID: &receiver, RoomID: &room, Body: "both"},
			wantErr: true,
		},
		{
			name:    "empty body",
			in:      PersistInput{SenderID: sender, ReceiverID: &receiver},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := m.Persist(ctx, tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, msg.ID)
			assert.False(t, msg.Read)
		})
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	for range 3 {
		_, err := m.Persist(ctx, PersistInput{SenderID: bob, ReceiverID: &alice, Body: "hello"})
		require.NoError(t, err)
	}

	count, err := m.UnreadCount(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	flipped, err := m.MarkRead(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(3), flipped)

	// Second invocation is a no-op and the count stays unchanged.
	flipped, err = m.MarkRead(ctx, alice, bob)
	require.NoError(t, err)
	assert.Zero(t, flipped)

	count, err = m.UnreadCount(ctx, alice, bob)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMarkReadScopedToPeer(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()

	_, err := m.Persist(ctx, PersistInput{SenderID: bob, ReceiverID: &alice, Body: "from bob"})
	require.NoError(t, err)
	_, err = m.Persist(ctx, PersistInput{SenderID: carol, ReceiverID: &alice, Body: "from carol"})
	require.NoError(t, err)

	_, err = m.MarkRead(ctx, alice, bob)
	require.NoError(t, err)

	count, err := m.UnreadCount(ctx, alice, carol)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "marking bob read must not touch carol's messages")
}

func TestRoomReadState(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	room := uuid.New()

	_, err := m.Persist(ctx, PersistInput{SenderID: bob, RoomID: &room, Body: "room msg"})
	require.NoError(t, err)
	_, err = m.Persist(ctx, PersistInput{SenderID: alice, RoomID: &room, Body: "own msg"})
	require.NoError(t, err)

	// Own messages never count as unread for their author.
	count, err := m.UnreadRoomCount(ctx, alice, room)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	flipped, err := m.MarkRoomRead(ctx, alice, room)
	require.NoError(t, err)
	assert.Equal(t, int64(1), flipped)

	count, err = m.UnreadRoomCount(ctx, alice, room)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestListConversationOrderAndLimit(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	base := time.Now().UTC()
	for i := range 5 {
		_, err := m.Persist(ctx, PersistInput{
			SenderID:   bob,
			ReceiverID: &alice,
			Body:       "msg",
			Now:        base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	msgs, err := m.ListConversation(ctx, alice, bob, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	// Newest three, ascending.
	assert.True(t, msgs[0].CreatedAt.Before(msgs[1].CreatedAt))
	assert.True(t, msgs[1].CreatedAt.Before(msgs[2].CreatedAt))
	assert.Equal(t, base.Add(4*time.Second), msgs[2].CreatedAt)
}

func TestListRoomMessagesVisibleToOfflineMembers(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	sender := uuid.New()
	room := uuid.New()

	stored, err := m.Persist(ctx, PersistInput{SenderID: sender, RoomID: &room, Body: "while you were away"})
	require.NoError(t, err)

	msgs, err := m.ListRoomMessages(ctx, room, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, stored.ID, msgs[0].ID)
}

func TestSessionsAndDirectory(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	id := uuid.New()

	m.SeedUser(id, "Nguyen Van A")
	m.SeedSession("tok-1", id)

	got, err := m.ResolveSession(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = m.ResolveSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	name, err := m.DisplayName(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Nguyen Van A", name)

	_, err = m.DisplayName(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUnreadCountsFollowReadFlips(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	reader := uuid.New()
	bob := uuid.New()
	carol := uuid.New()

	for _, sender := range []uuid.UUID{bob, bob, carol} {
		_, err := m.Persist(ctx, PersistInput{SenderID: sender, ReceiverID: &reader, Body: "hi"})
		require.NoError(t, err)
	}

	counts, err := m.UnreadCounts(ctx, reader)
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]int{bob: 2, carol: 1}, counts)

	_, err = m.MarkRead(ctx, reader, bob)
	require.NoError(t, err)

	counts, err = m.UnreadCounts(ctx, reader)
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]int{carol: 1}, counts)
}
