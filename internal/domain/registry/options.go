package registry

import "time"

type config struct {
	mailboxSize int
	sendTimeout time.Duration
}

func defaultConfig() config {
	return config{
		mailboxSize: 256,
		sendTimeout: 500 * time.Millisecond,
	}
}

// Option is a functional configuration type for the Hub.
type Option func(*Hub)

// WithMailboxSize sets the buffer capacity of channels minted by the hub's
// delivery service. A full mailbox drops events rather than queueing further.
func WithMailboxSize(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.config.mailboxSize = size
		}
	}
}

// WithSendTimeout bounds each individual push attempt so a wedged subscriber
// cannot stall the broadcast path.
func WithSendTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.config.sendTimeout = d
		}
	}
}

// MailboxSize exposes the configured per-channel buffer capacity.
func (h *Hub) MailboxSize() int { return h.config.mailboxSize }

// SendTimeout exposes the configured per-push attempt window.
func (h *Hub) SendTimeout() time.Duration { return h.config.sendTimeout }
