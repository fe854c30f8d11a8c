package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/utc2/chat-delivery-service/internal/adapter/metrics"
	"github.com/utc2/chat-delivery-service/internal/adapter/store"
	"github.com/utc2/chat-delivery-service/internal/domain/event"
	"github.com/utc2/chat-delivery-service/internal/domain/model"
	"github.com/utc2/chat-delivery-service/internal/domain/registry"
)

// Broadcaster delivers one persisted message to its addressees' live
// channels. Delivery is at most once per registered channel: no retry, no
// buffering for offline recipients; they reconcile by polling the store.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg *model.Message) error
}

// Interface guard
var _ Broadcaster = (*BroadcastDispatcher)(nil)

type BroadcastDispatcher struct {
	hub      registry.Hubber
	store    store.MessageStore
	enricher Enricher
	logger   *slog.Logger
	metrics  *metrics.Delivery
}

func NewBroadcastDispatcher(
	hub registry.Hubber,
	st store.MessageStore,
	enricher Enricher,
	logger *slog.Logger,
	m *metrics.Delivery,
) *BroadcastDispatcher {
	return &BroadcastDispatcher{
		hub:      hub,
		store:    st,
		enricher: enricher,
		logger:   logger,
		metrics:  m,
	}
}

// Broadcast resolves the addressee set, looks up each live channel, and
// attempts exactly one bounded push per channel. Pushes run independently so
// a wedged subscriber cannot stall the others, and none of them holds the
// registry lock.
//
// The only returned error is a room-membership fetch failure; push failures
// are routine conditions handled by pruning.
func (b *BroadcastDispatcher) Broadcast(ctx context.Context, msg *model.Message) error {
	b.metrics.BroadcastsTotal.Inc()

	addressees, err := b.resolveAddressees(ctx, msg)
	if err != nil {
		return err
	}

	// Sender name is resolved once per broadcast; an open breaker or unknown
	// user degrades to an empty name rather than blocking delivery.
	if name, err := b.enricher.Resolve(ctx, msg.SenderID); err == nil {
		msg.SenderName = name
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16)

	for _, addressee := range addressees {
		g.Go(func() error {
			b.push(gctx, msg, addressee)
			return nil
		})
	}
	_ = g.Wait()

	return nil
}

// push makes the single bounded delivery attempt for one addressee.
func (b *BroadcastDispatcher) push(ctx context.Context, msg *model.Message, addressee uuid.UUID) {
	conn, ok := b.hub.Lookup(addressee)
	if !ok {
		// Disconnected recipients simply miss the push.
		b.metrics.PushesDropped.WithLabelValues("offline").Inc()
		return
	}

	ev := event.NewMessageEvent(msg, addressee)

	switch err := conn.Send(ev, b.hub.SendTimeout()); {
	case err == nil:
		b.metrics.PushesDelivered.WithLabelValues(ev.GetKind().String()).Inc()

	case errors.Is(err, registry.ErrChannelClosed):
		// Compare-and-delete prunes only this entry; a replacement that
		// won the registry slot in the meantime is untouched.
		b.hub.Unregister(addressee, conn)
		b.metrics.PushesDropped.WithLabelValues("closed").Inc()
		b.logger.Debug("pruned dead push channel",
			"identity", addressee,
			"conn_id", conn.GetID(),
			"message_id", msg.ID,
		)

	case errors.Is(err, registry.ErrChannelFull):
		// Lossy path: no queue grows behind a slow subscriber.
		b.metrics.PushesDropped.WithLabelValues("full").Inc()
		b.logger.Warn("push dropped on saturated channel",
			"identity", addressee,
			"message_id", msg.ID,
		)
	}
}

// resolveAddressees returns the single receiver, or the room's member list
// fetched fresh from the store minus the sender. Membership is never cached,
// so changes take effect on the next message.
func (b *BroadcastDispatcher) resolveAddressees(ctx context.Context, msg *model.Message) ([]uuid.UUID, error) {
	if msg.IsDirect() {
		return []uuid.UUID{*msg.ReceiverID}, nil
	}

	members, err := b.store.ListRoomMembers(ctx, *msg.RoomID)
	if err != nil {
		return nil, fmt.Errorf("broadcast: resolve room members: %w", err)
	}

	addressees := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		if member == msg.SenderID {
			continue
		}
		addressees = append(addressees, member)
	}
	return addressees, nil
}
