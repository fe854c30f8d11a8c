package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utc2/chat-delivery-service/internal/adapter/metrics"
	"github.com/utc2/chat-delivery-service/internal/adapter/store"
	"github.com/utc2/chat-delivery-service/internal/domain/event"
	"github.com/utc2/chat-delivery-service/internal/domain/model"
	"github.com/utc2/chat-delivery-service/internal/domain/registry"
)

type broadcastFixture struct {
	hub        *registry.Hub
	store      *store.Memory
	metrics    *metrics.Delivery
	dispatcher *BroadcastDispatcher
	deliverer  *DeliveryService
}

func newBroadcastFixture(t *testing.T) *broadcastFixture {
	t.Helper()

	hub := registry.NewHub(registry.WithSendTimeout(50 * time.Millisecond))
	mem := store.NewMemory()
	m := metrics.NewDelivery(prometheus.NewRegistry())
	logger := slog.New(slog.DiscardHandler)
	enricher := NewNameEnricher(mem)

	return &broadcastFixture{
		hub:        hub,
		store:      mem,
		metrics:    m,
		dispatcher: NewBroadcastDispatcher(hub, mem, enricher, logger, m),
		deliverer:  NewDeliveryService(hub, m),
	}
}

func (f *broadcastFixture) connect(t *testing.T, identity uuid.UUID) registry.Connector {
	t.Helper()
	conn, err := f.deliverer.Subscribe(context.Background(), identity)
	require.NoError(t, err)
	return conn
}

func recvEvent(t *testing.T, conn registry.Connector) event.Eventer {
	t.Helper()
	select {
	case ev := <-conn.Recv():
		return ev
	case <-time.After(time.Second):
		t.Fatal("expected a delivery event")
		return nil
	}
}

func assertNoEvent(t *testing.T, conn registry.Connector) {
	t.Helper()
	select {
	case ev := <-conn.Recv():
		t.Fatalf("unexpected event %s for disconnected/unaddressed identity", ev.GetID())
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastRoomDeliversOnlyToConnectedMembers(t *testing.T) {
	f := newBroadcastFixture(t)
	ctx := context.Background()

	sender := uuid.New()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	room := uuid.New()
	for _, id := range []uuid.UUID{sender, a, b, c} {
		f.store.SeedRoomMember(room, id)
	}

	connA := f.connect(t, a)
	connC := f.connect(t, c)
	// b is a member but not connected.

	msg, err := f.store.Persist(ctx, store.PersistInput{SenderID: sender, RoomID: &room, Body: "meeting at 9"})
	require.NoError(t, err)
	require.NoError(t, f.dispatcher.Broadcast(ctx, msg))

	for _, conn := range []registry.Connector{connA, connC} {
		ev := recvEvent(t, conn)
		assert.Equal(t, event.MessageCreated, ev.GetKind())
		got := ev.GetPayload().(*model.Message)
		assert.Equal(t, "meeting at 9", got.Body)
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.PushesDelivered.WithLabelValues("message")))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.PushesDropped.WithLabelValues("offline")))
}

func TestBroadcastSkipsSender(t *testing.T) {
	f := newBroadcastFixture(t)
	ctx := context.Background()

	sender, member := uuid.New(), uuid.New()
	room := uuid.New()
	f.store.SeedRoomMember(room, sender)
	f.store.SeedRoomMember(room, member)

	senderConn := f.connect(t, sender)
	memberConn := f.connect(t, member)

	msg, err := f.store.Persist(ctx, store.PersistInput{SenderID: sender, RoomID: &room, Body: "hi"})
	require.NoError(t, err)
	require.NoError(t, f.dispatcher.Broadcast(ctx, msg))

	recvEvent(t, memberConn)
	assertNoEvent(t, senderConn)
}

func TestBroadcastPrunesOnlyTheFailingEntry(t *testing.T) {
	f := newBroadcastFixture(t)
	ctx := context.Background()

	sender := uuid.New()
	broken, healthy := uuid.New(), uuid.New()
	room := uuid.New()
	for _, id := range []uuid.UUID{sender, broken, healthy} {
		f.store.SeedRoomMember(room, id)
	}

	brokenConn := f.connect(t, broken)
	healthyConn := f.connect(t, healthy)

	// Simulate a peer disconnect the registry has not noticed yet.
	brokenConn.Close()
	require.True(t, f.hub.IsConnected(broken))

	msg, err := f.store.Persist(ctx, store.PersistInput{SenderID: sender, RoomID: &room, Body: "who is still here"})
	require.NoError(t, err)
	require.NoError(t, f.dispatcher.Broadcast(ctx, msg))

	// The failing identity's entry is pruned; the healthy one is untouched
	// and got its event.
	assert.False(t, f.hub.IsConnected(broken))
	assert.True(t, f.hub.IsConnected(healthy))
	recvEvent(t, healthyConn)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.PushesDropped.WithLabelValues("closed")))
}

func TestBroadcastRoomWithNoConnectedMembers(t *testing.T) {
	f := newBroadcastFixture(t)
	ctx := context.Background()

	sender, offline := uuid.New(), uuid.New()
	room := uuid.New()
	f.store.SeedRoomMember(room, sender)
	f.store.SeedRoomMember(room, offline)

	msg, err := f.store.Persist(ctx, store.PersistInput{SenderID: sender, RoomID: &room, Body: "hello?"})
	require.NoError(t, err)
	require.NoError(t, f.dispatcher.Broadcast(ctx, msg))

	// Persisted regardless of delivery outcome, zero push attempts made.
	assert.Zero(t, testutil.ToFloat64(f.metrics.PushesDelivered.WithLabelValues("message")))

	msgs, err := f.store.ListRoomMessages(ctx, room, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, msg.ID, msgs[0].ID)
}

func TestBroadcastDirectMessageCarriesSenderName(t *testing.T) {
	f := newBroadcastFixture(t)
	ctx := context.Background()

	sender, receiver := uuid.New(), uuid.New()
	f.store.SeedUser(sender, "Tran Thi B")

	conn := f.connect(t, receiver)

	msg, err := f.store.Persist(ctx, store.PersistInput{SenderID: sender, ReceiverID: &receiver, Body: "hello"})
	require.NoError(t, err)
	require.NoError(t, f.dispatcher.Broadcast(ctx, msg))

	got := recvEvent(t, conn).GetPayload().(*model.Message)
	assert.Equal(t, "hello", got.Body)
	assert.Equal(t, sender, got.SenderID)
	assert.Equal(t, "Tran Thi B", got.SenderName)
}

func TestHubOptionsGovernMintedChannels(t *testing.T) {
	ctx := context.Background()

	hub := registry.NewHub(
		registry.WithMailboxSize(1),
		registry.WithSendTimeout(5*time.Millisecond),
	)
	mem := store.NewMemory()
	m := metrics.NewDelivery(prometheus.NewRegistry())
	logger := slog.New(slog.DiscardHandler)
	dispatcher := NewBroadcastDispatcher(hub, mem, NewNameEnricher(mem), logger, m)
	deliverer := NewDeliveryService(hub, m)

	sender, receiver := uuid.New(), uuid.New()
	_, err := deliverer.Subscribe(ctx, receiver)
	require.NoError(t, err)

	// Nothing drains the channel, so the hub-configured one-slot mailbox
	// saturates on the second push and the bounded attempt gives up.
	for _, body := range []string{"first", "second"} {
		msg, err := mem.Persist(ctx, store.PersistInput{SenderID: sender, ReceiverID: &receiver, Body: body})
		require.NoError(t, err)
		require.NoError(t, dispatcher.Broadcast(ctx, msg))
	}

	assert.Equal(t, float64(1), testutil.ToFloat64(m.PushesDelivered.WithLabelValues("message")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PushesDropped.WithLabelValues("full")))
}

func TestUnsubscribeWithStaleChannelKeepsNewerEntry(t *testing.T) {
	f := newBroadcastFixture(t)
	identity := uuid.New()

	older := f.connect(t, identity)
	newer := f.connect(t, identity)

	// The older tab's teardown runs after it was replaced.
	f.deliverer.Unsubscribe(identity, older)

	current, ok := f.hub.Lookup(identity)
	require.True(t, ok)
	assert.Equal(t, newer.GetID(), current.GetID())

	// The stale channel itself is closed by its own unsubscribe.
	select {
	case <-older.Done():
	case <-time.After(time.Second):
		t.Fatal("stale channel not closed")
	}
}
