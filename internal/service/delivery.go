package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/utc2/chat-delivery-service/internal/adapter/metrics"
	"github.com/utc2/chat-delivery-service/internal/domain/registry"
)

// Deliverer is the primary interface for push transport handlers (ws/sse).
type Deliverer interface {
	Subscribe(ctx context.Context, identity uuid.UUID) (registry.Connector, error)
	Unsubscribe(identity uuid.UUID, conn registry.Connector)
}

// Interface guard
var _ Deliverer = (*DeliveryService)(nil)

type DeliveryService struct {
	hub     registry.Hubber
	metrics *metrics.Delivery
}

// NewDeliveryService wires the registry behind the transport-facing API.
func NewDeliveryService(hub registry.Hubber, m *metrics.Delivery) *DeliveryService {
	return &DeliveryService{
		hub:     hub,
		metrics: m,
	}
}

// Subscribe mints a push channel bound to the request context and installs
// it as the identity's registry entry, replacing any prior one. The mailbox
// capacity comes from the hub so every transport mints identical channels.
func (s *DeliveryService) Subscribe(ctx context.Context, identity uuid.UUID) (registry.Connector, error) {
	conn := registry.NewConnector(ctx, identity, s.hub.MailboxSize())
	s.hub.Register(identity, conn)
	s.metrics.ConnectionsActive.Set(float64(s.hub.Stats().Connections))
	return conn, nil
}

// Unsubscribe removes the entry via compare-and-delete and closes the
// channel. A stale unsubscribe from a replaced connection closes only its
// own channel and leaves the newer entry intact.
func (s *DeliveryService) Unsubscribe(identity uuid.UUID, conn registry.Connector) {
	s.hub.Unregister(identity, conn)
	conn.Close()
	s.metrics.ConnectionsActive.Set(float64(s.hub.Stats().Connections))
}
