package bus

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utc2/chat-delivery-service/config"
	"github.com/utc2/chat-delivery-service/internal/adapter/pubsub"
	"github.com/utc2/chat-delivery-service/internal/domain/model"
	"github.com/utc2/chat-delivery-service/internal/service/dto"
)

type capturingBroadcaster struct {
	broadcasts chan *model.Message
}

func (b *capturingBroadcaster) Broadcast(_ context.Context, msg *model.Message) error {
	b.broadcasts <- msg
	return nil
}

type busFixture struct {
	broadcaster *capturingBroadcaster
	dispatcher  pubsub.EventDispatcher
}

// newBusFixture runs the full in-process pipeline: dispatcher publish,
// gochannel transport, router middleware, domain handler.
func newBusFixture(t *testing.T) *busFixture {
	t.Helper()

	cfg := config.Default()
	logger := slog.New(slog.DiscardHandler)

	b, err := pubsub.NewBus(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	router, err := NewWatermillRouter(b)
	require.NoError(t, err)

	bc := &capturingBroadcaster{broadcasts: make(chan *model.Message, 8)}
	dispatcher := pubsub.NewEventDispatcher(b)
	h := NewBusHandler(bc, dispatcher, logger)
	require.NoError(t, h.RegisterHandlers(router, b))

	ctx, cancel := context.WithCancel(context.Background())
	go router.Run(ctx)
	t.Cleanup(func() {
		cancel()
		router.Close()
	})

	select {
	case <-router.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router never started")
	}

	return &busFixture{broadcaster: bc, dispatcher: dispatcher}
}

func TestMessageCreatedEventReachesBroadcaster(t *testing.T) {
	f := newBusFixture(t)

	receiver := uuid.New()
	msg := &model.Message{
		ID:         uuid.New(),
		SenderID:   uuid.New(),
		ReceiverID: &receiver,
		Body:       "through the bus",
		CreatedAt:  time.Now().UTC(),
	}

	err := f.dispatcher.Publish(context.Background(), pubsub.TopicMessageCreated, dto.FromDomain(msg))
	require.NoError(t, err)

	select {
	case got := <-f.broadcaster.broadcasts:
		assert.Equal(t, msg.ID, got.ID)
		assert.Equal(t, "through the bus", got.Body)
		require.NotNil(t, got.ReceiverID)
		assert.Equal(t, receiver, *got.ReceiverID)
	case <-time.After(5 * time.Second):
		t.Fatal("broadcast never fired")
	}
}

func TestInvalidPayloadIsDiscardedNotRetried(t *testing.T) {
	f := newBusFixture(t)

	// Neither receiver nor room: fails validation and must be acked away.
	err := f.dispatcher.Publish(context.Background(), pubsub.TopicMessageCreated, &dto.MessageCreatedV1{
		MessageID: uuid.NewString(),
		SenderID:  uuid.NewString(),
		Body:      "nowhere to go",
	})
	require.NoError(t, err)

	select {
	case got := <-f.broadcaster.broadcasts:
		t.Fatalf("invalid message broadcast: %+v", got)
	case <-time.After(300 * time.Millisecond):
	}
}
