// Package registry tracks the single live push channel per subscriber
// identity.
//
// Contract:
//   - Register installs a channel unconditionally, replacing any prior entry.
//     The prior entry is NOT closed here: its owning handler detects the next
//     write (heartbeat) failure and self-evicts.
//   - Unregister is compare-and-delete, so a stale unregister from an
//     already-replaced connection can never evict a newer, valid entry.
//   - All three operations are linearizable under one mutex and never touch
//     I/O; pushes happen after Lookup returns, outside the lock.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/utc2/chat-delivery-service/internal/domain/model"
)

// Hubber is the registry gateway consumed by the delivery service and the
// broadcast path.
type Hubber interface {
	Register(identity uuid.UUID, conn Connector)
	Lookup(identity uuid.UUID) (Connector, bool)
	Unregister(identity uuid.UUID, conn Connector) bool
	IsConnected(identity uuid.UUID) bool
	Stats() model.HubStats
	Shutdown()

	// Delivery knobs for channels minted against this registry.
	MailboxSize() int
	SendTimeout() time.Duration
}

// Interface guard
var _ Hubber = (*Hub)(nil)

// Hub is the single-process implementation: one mutex-guarded map keyed by
// identity. Every request-handling path shares this one instance; a second
// server process has an independent registry and will not see this one's
// connections.
type Hub struct {
	mu       sync.Mutex
	channels map[uuid.UUID]Connector

	startedAt  time.Time
	registered uint64
	replaced   uint64

	config config
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		channels:  make(map[uuid.UUID]Connector),
		startedAt: time.Now(),
		config:    defaultConfig(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register installs conn as the identity's entry, overwriting (not stacking)
// any previous one. The overwritten channel is left for its own owner to
// reap.
func (h *Hub) Register(identity uuid.UUID, conn Connector) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.channels[identity]; exists {
		h.replaced++
	}
	h.channels[identity] = conn
	h.registered++
}

// Lookup is a non-blocking read of the identity's live channel.
func (h *Hub) Lookup(identity uuid.UUID) (Connector, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.channels[identity]
	return conn, ok
}

// Unregister removes the entry only if it still equals conn. It reports
// whether an entry was removed.
func (h *Hub) Unregister(identity uuid.UUID, conn Connector) bool {
	if conn == nil {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	current, ok := h.channels[identity]
	if !ok || current.GetID() != conn.GetID() {
		return false
	}
	delete(h.channels, identity)
	return true
}

func (h *Hub) IsConnected(identity uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, ok := h.channels[identity]
	return ok
}

func (h *Hub) Stats() model.HubStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	return model.HubStats{
		Connections: len(h.channels),
		Registered:  h.registered,
		Replaced:    h.replaced,
		Uptime:      time.Since(h.startedAt),
	}
}

// Shutdown closes every registered channel and clears the map. Owning
// handlers observe Done and finish their own teardown.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	conns := make([]Connector, 0, len(h.channels))
	for _, c := range h.channels {
		conns = append(conns, c)
	}
	h.channels = make(map[uuid.UUID]Connector)
	h.mu.Unlock()

	// Close outside the lock: Close cancels a context and must not be able
	// to stall registry access.
	for _, c := range conns {
		c.Close()
	}
}
