package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// EventDispatcher is the high-level contract for outgoing bus events. It
// keeps the HTTP handlers agnostic of the transport implementation.
type EventDispatcher interface {
	Publish(ctx context.Context, topic string, payload any) error
	Publisher() message.Publisher
}

// Interface guard
var _ EventDispatcher = (*eventDispatcher)(nil)

type eventDispatcher struct {
	publisher message.Publisher
}

// NewEventDispatcher returns the interface instead of the concrete struct.
func NewEventDispatcher(bus *Bus) EventDispatcher {
	return &eventDispatcher{publisher: bus.Publisher}
}

func (d *eventDispatcher) Publish(ctx context.Context, topic string, payload any) error {
	if payload == nil {
		return fmt.Errorf("event dispatcher: cannot publish nil payload")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("event dispatcher: marshal failure: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.SetContext(ctx)

	if err := d.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("event dispatcher: failed to publish to topic %s: %w", topic, err)
	}
	return nil
}

func (d *eventDispatcher) Publisher() message.Publisher {
	return d.publisher
}
