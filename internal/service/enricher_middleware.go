package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// enricherMiddleware decorates an Enricher with timing and outcome logging
// without touching resolution logic.
type enricherMiddleware struct {
	next   Enricher
	logger *slog.Logger
}

// NewEnricherMiddleware creates the logging decorator for the Enricher.
func NewEnricherMiddleware(next Enricher, logger *slog.Logger) Enricher {
	return &enricherMiddleware{next: next, logger: logger}
}

func (m *enricherMiddleware) Resolve(ctx context.Context, id uuid.UUID) (string, error) {
	start := time.Now()

	name, err := m.next.Resolve(ctx, id)
	if err != nil {
		m.logger.Warn("display name resolution failed",
			"identity", id,
			"err", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return name, err
}

func (m *enricherMiddleware) ResolveMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	start := time.Now()

	out, err := m.next.ResolveMany(ctx, ids)
	if err != nil {
		m.logger.Warn("batch display name resolution failed",
			"count", len(ids),
			"err", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return out, err
}
