package bus

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/fx"

	"github.com/utc2/chat-delivery-service/internal/adapter/pubsub"
)

var Module = fx.Module("bus-handler",
	fx.Provide(
		NewBusHandler,
		NewWatermillRouter,
	),

	fx.Invoke(func(lc fx.Lifecycle, h *BusHandler, router *message.Router, b *pubsub.Bus) error {
		if err := h.RegisterHandlers(router, b); err != nil {
			return err
		}

		runCtx, cancel := context.WithCancel(context.Background())

		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				go func() {
					if err := router.Run(runCtx); err != nil {
						h.logger.Error("bus router terminated", "err", err)
					}
				}()

				// Handlers must be subscribed before the HTTP surface starts
				// accepting sends.
				select {
				case <-router.Running():
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
			OnStop: func(ctx context.Context) error {
				cancel()
				return router.Close()
			},
		})
		return nil
	}),
)
