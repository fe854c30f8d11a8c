package registry

import (
	"context"

	"go.uber.org/fx"

	appconfig "github.com/utc2/chat-delivery-service/config"
)

var Module = fx.Module("registry",
	fx.Provide(
		func(cfg *appconfig.Config) *Hub {
			return NewHub(
				WithMailboxSize(cfg.Delivery.MailboxSize),
				WithSendTimeout(cfg.Delivery.SendTimeout),
			)
		},
		func(h *Hub) Hubber { return h },
	),
	fx.Invoke(func(lc fx.Lifecycle, h Hubber) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				h.Shutdown()
				return nil
			},
		})
	}),
)
