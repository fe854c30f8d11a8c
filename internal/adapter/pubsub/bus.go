// Package pubsub provides the message-created bus the send handler publishes
// to and the delivery pipeline consumes from.
//
// The default transport is watermill's in-process gochannel, which keeps the
// whole pipeline inside one process to match the single-process registry
// constraint. bus.kind=amqp swaps in RabbitMQ for deployments that accept
// the documented multi-instance delivery caveat; registry semantics do not
// change either way.
package pubsub

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/utc2/chat-delivery-service/config"
)

// Bus bundles the publisher/subscriber pair for one transport.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	Logger     watermill.LoggerAdapter
}

func NewBus(cfg *config.Config, logger *slog.Logger) (*Bus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch cfg.Bus.Kind {
	case "channel":
		ch := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, wmLogger)
		return &Bus{Publisher: ch, Subscriber: ch, Logger: wmLogger}, nil

	case "amqp":
		amqpCfg := amqp.NewDurablePubSubConfig(
			cfg.Bus.AMQPURL,
			amqp.GenerateQueueNameTopicNameWithSuffix("chat-delivery"),
		)
		pub, err := amqp.NewPublisher(amqpCfg, wmLogger)
		if err != nil {
			return nil, fmt.Errorf("pubsub: amqp publisher: %w", err)
		}
		sub, err := amqp.NewSubscriber(amqpCfg, wmLogger)
		if err != nil {
			return nil, fmt.Errorf("pubsub: amqp subscriber: %w", err)
		}
		return &Bus{Publisher: pub, Subscriber: sub, Logger: wmLogger}, nil

	default:
		return nil, fmt.Errorf("pubsub: unknown bus kind %q", cfg.Bus.Kind)
	}
}

// Close releases both ends. gochannel shares one instance for pub and sub;
// closing it twice is safe.
func (b *Bus) Close() error {
	var firstErr error
	if err := b.Publisher.Close(); err != nil {
		firstErr = err
	}
	if err := b.Subscriber.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
