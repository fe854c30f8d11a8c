package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"

	"github.com/utc2/chat-delivery-service/config"
)

// Module provides the Store collaborator selected by store.kind. The memory
// profile exists for tests and local development; production runs Postgres.
var Module = fx.Module("store",
	fx.Provide(
		NewStore,
		func(s Store) MessageStore { return s },
		func(s Store) Directory { return s },
		func(s Store) SessionStore { return s },
	),
)

func NewStore(lc fx.Lifecycle, cfg *config.Config) (Store, error) {
	switch cfg.Store.Kind {
	case "memory":
		return NewMemory(), nil

	case "postgres":
		poolCfg, err := pgxpool.ParseConfig(cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("store: parse dsn: %w", err)
		}

		pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
		if err != nil {
			return nil, fmt.Errorf("store: connect: %w", err)
		}

		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return pool.Ping(ctx)
			},
			OnStop: func(ctx context.Context) error {
				pool.Close()
				return nil
			},
		})

		return NewPostgres(pool, WithSchema(cfg.Store.Schema))

	default:
		return nil, fmt.Errorf("store: unknown kind %q", cfg.Store.Kind)
	}
}
