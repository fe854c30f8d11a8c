package cmd

import (
	"log/slog"
	"os"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/utc2/chat-delivery-service/config"
	httpsrv "github.com/utc2/chat-delivery-service/infra/server/http"
	"github.com/utc2/chat-delivery-service/internal/adapter/metrics"
	"github.com/utc2/chat-delivery-service/internal/adapter/pubsub"
	"github.com/utc2/chat-delivery-service/internal/adapter/store"
	"github.com/utc2/chat-delivery-service/internal/domain/registry"
	"github.com/utc2/chat-delivery-service/internal/handler/api"
	"github.com/utc2/chat-delivery-service/internal/handler/bus"
	"github.com/utc2/chat-delivery-service/internal/handler/sse"
	"github.com/utc2/chat-delivery-service/internal/handler/ws"
	"github.com/utc2/chat-delivery-service/internal/service"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger}
		}),

		registry.Module,
		store.Module,
		pubsub.Module,
		metrics.Module,
		service.Module,

		api.Module,
		sse.Module,
		ws.Module,
		bus.Module,
		httpsrv.Module,
	)
}

func ProvideLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})).With("service", ServiceName)

	slog.SetDefault(logger)
	return logger
}
