// Package bus consumes the message-created topic and drives the broadcast
// pipeline. Consumption is decoupled from the send request: the 201 response
// never waits on fan-out.
package bus

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/utc2/chat-delivery-service/internal/adapter/pubsub"
	"github.com/utc2/chat-delivery-service/internal/service"
)

type BusHandler struct {
	broadcaster service.Broadcaster
	dispatcher  pubsub.EventDispatcher
	logger      *slog.Logger
}

func NewBusHandler(broadcaster service.Broadcaster, dispatcher pubsub.EventDispatcher, logger *slog.Logger) *BusHandler {
	return &BusHandler{broadcaster: broadcaster, dispatcher: dispatcher, logger: logger}
}

func NewWatermillRouter(bus *pubsub.Bus) (*message.Router, error) {
	return message.NewRouter(message.RouterConfig{
		CloseTimeout: 15 * time.Second,
	}, bus.Logger)
}

// RegisterHandlers attaches every consumer in one table. New domain listeners
// are added as new rows.
func (h *BusHandler) RegisterHandlers(router *message.Router, bus *pubsub.Bus) error {
	poison, err := middleware.PoisonQueue(h.dispatcher.Publisher(), pubsub.TopicDeliveryPoison)
	if err != nil {
		return fmt.Errorf("bus: poison queue setup: %w", err)
	}

	configs := []struct {
		name    string
		topic   string
		handler message.NoPublishHandlerFunc
	}{
		{"on_message_created", pubsub.TopicMessageCreated, Bind(h, h.OnMessageCreated)},
	}

	for _, c := range configs {
		router.AddNoPublisherHandler(c.name, c.topic, bus.Subscriber, c.handler).AddMiddleware(
			TraceIDMiddleware,
			LoggingMiddleware(h.logger),
			NewRetryMiddleware().Middleware,
			poison,
			middleware.Timeout(30*time.Second),
		)
	}

	h.logger.Info("bus pipeline ready", "handlers", len(configs))
	return nil
}
