package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utc2/chat-delivery-service/internal/adapter/store"
)

func TestReadReconcilerIsIdempotent(t *testing.T) {
	mem := store.NewMemory()
	svc := NewReadStateService(mem, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	alice, bob := uuid.New(), uuid.New()
	_, err := mem.Persist(ctx, store.PersistInput{SenderID: bob, ReceiverID: &alice, Body: "one"})
	require.NoError(t, err)
	_, err = mem.Persist(ctx, store.PersistInput{SenderID: bob, ReceiverID: &alice, Body: "two"})
	require.NoError(t, err)

	flipped, err := svc.MarkRead(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(2), flipped)

	count, err := svc.UnreadCount(ctx, alice, bob)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Second call leaves the unread count unchanged.
	flipped, err = svc.MarkRead(ctx, alice, bob)
	require.NoError(t, err)
	assert.Zero(t, flipped)

	count, err = svc.UnreadCount(ctx, alice, bob)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestReadReconcilerRejectsEmptyIdentities(t *testing.T) {
	svc := NewReadStateService(store.NewMemory(), slog.New(slog.DiscardHandler))

	_, err := svc.MarkRead(context.Background(), uuid.Nil, uuid.New())
	assert.Error(t, err)

	_, err = svc.MarkRoomRead(context.Background(), uuid.New(), uuid.Nil)
	assert.Error(t, err)
}
