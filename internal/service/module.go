package service

import (
	"log/slog"

	"go.uber.org/fx"
)

var Module = fx.Module("service",
	fx.Provide(
		// Domain services
		fx.Annotate(
			NewDeliveryService,
			fx.As(new(Deliverer)),
		),
		fx.Annotate(
			NewBroadcastDispatcher,
			fx.As(new(Broadcaster)),
		),
		fx.Annotate(
			NewReadStateService,
			fx.As(new(ReadReconciler)),
		),
		fx.Annotate(
			NewNameEnricher,
			fx.As(new(Enricher)),
		),
		fx.Annotate(
			NewSessionAuther,
			fx.As(new(Auther)),
		),
	),

	// Intercept the enricher to add cross-cutting observability.
	fx.Decorate(func(orig Enricher, logger *slog.Logger) Enricher {
		return NewEnricherMiddleware(orig, logger)
	}),
)
