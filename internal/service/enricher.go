package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/utc2/chat-delivery-service/internal/adapter/store"
)

// Enricher resolves sender display names for delivery events and message
// listings.
type Enricher interface {
	// Resolve returns the display name for one identity.
	Resolve(ctx context.Context, id uuid.UUID) (string, error)
	// ResolveMany performs concurrent resolution for a batch of identities.
	ResolveMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// Interface guard
var _ Enricher = (*NameEnricher)(nil)

// NameEnricher is a cache-aside resolver over the directory collaborator.
// Hot identities are kept in an LRU cache; directory access is guarded by a
// circuit breaker so a degraded directory cannot stall the delivery path.
type NameEnricher struct {
	directory store.Directory
	cache     *lru.Cache[uuid.UUID, string]
	breaker   *gobreaker.CircuitBreaker
}

func NewNameEnricher(directory store.Directory) *NameEnricher {
	cache, _ := lru.New[uuid.UUID, string](10000)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "directory",
		Timeout: 15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &NameEnricher{
		directory: directory,
		cache:     cache,
		breaker:   breaker,
	}
}

func (e *NameEnricher) Resolve(ctx context.Context, id uuid.UUID) (string, error) {
	if id == uuid.Nil {
		return "", nil
	}

	if cached, ok := e.cache.Get(id); ok {
		return cached, nil
	}

	res, err := e.breaker.Execute(func() (any, error) {
		return e.directory.DisplayName(ctx, id)
	})
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			// Negative result is stable; cache it so unknown senders do not
			// hammer the directory.
			e.cache.Add(id, "")
			return "", nil
		}
		return "", err
	}

	name := res.(string)
	e.cache.Add(id, name)
	return name, nil
}

func (e *NameEnricher) ResolveMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	unique := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id != uuid.Nil {
			unique[id] = struct{}{}
		}
	}

	var mu sync.Mutex
	out := make(map[uuid.UUID]string, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for id := range unique {
		g.Go(func() error {
			name, err := e.Resolve(gctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			out[id] = name
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
