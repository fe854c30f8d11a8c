package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/utc2/chat-delivery-service/internal/domain/event"
)

var (
	// ErrChannelClosed means the channel's owning request has ended (or is
	// ending). Broadcasters react by compare-and-deleting the registry entry.
	ErrChannelClosed = errors.New("registry: push channel closed")

	// ErrChannelFull means the bounded send attempt timed out against a full
	// mailbox. The event is dropped; delivery stays best-effort.
	ErrChannelFull = errors.New("registry: push channel full")
)

// Interface guard
var _ Connector = (*connect)(nil)

// Connector is the ownership handle over one outbound push channel. It is
// owned by exactly one long-lived request handler; the registry holds it only
// for lookup and never shares it between identities.
type Connector interface {
	GetID() uuid.UUID
	GetUserID() uuid.UUID

	// Send attempts to enqueue one event within the bounded attempt window.
	// It returns ErrChannelClosed when the channel is torn down and
	// ErrChannelFull when the mailbox stays saturated for the whole window.
	Send(ev event.Eventer, timeout time.Duration) error

	// Recv is drained by the owning handler's pump loop. It is never closed;
	// consumers must select against Done to observe teardown.
	Recv() <-chan event.Eventer

	// Done is closed when the channel is torn down.
	Done() <-chan struct{}

	// Close tears the channel down. Idempotent, safe under concurrency.
	Close()
}

type connect struct {
	id        uuid.UUID
	userID    uuid.UUID
	createdAt time.Time

	ctx      context.Context
	cancelFn context.CancelFunc

	sendCh    chan event.Eventer
	closeOnce sync.Once
}

// NewConnector builds a push channel bound to the owning request's context:
// when ctx is cancelled the channel counts as closed without any explicit
// Close call.
func NewConnector(ctx context.Context, userID uuid.UUID, bufferSize int) Connector {
	childCtx, cancel := context.WithCancel(ctx)
	return &connect{
		id:        uuid.New(),
		userID:    userID,
		createdAt: time.Now(),
		ctx:       childCtx,
		cancelFn:  cancel,
		sendCh:    make(chan event.Eventer, bufferSize),
	}
}

func (c *connect) GetID() uuid.UUID     { return c.id }
func (c *connect) GetUserID() uuid.UUID { return c.userID }

func (c *connect) Send(ev event.Eventer, timeout time.Duration) error {
	// Fast path: no timer allocation when there is room.
	select {
	case <-c.ctx.Done():
		return ErrChannelClosed
	case c.sendCh <- ev:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.ctx.Done():
		return ErrChannelClosed
	case c.sendCh <- ev:
		return nil
	case <-timer.C:
		return ErrChannelFull
	}
}

func (c *connect) Recv() <-chan event.Eventer { return c.sendCh }

func (c *connect) Done() <-chan struct{} { return c.ctx.Done() }

// Close cancels the channel context. The event channel itself is never
// closed: a superseded channel may still be drained by its owning handler
// while broadcasters hold a stale reference to it, and closing under
// concurrent Send would panic.
func (c *connect) Close() {
	c.closeOnce.Do(func() {
		c.cancelFn()
	})
}
