package bus

import (
	"context"
	"encoding/json"
	"runtime/debug"

	"github.com/ThreeDotsLabs/watermill/message"
)

// DomainHandler is the functional signature consumers implement.
type DomainHandler[T any] func(ctx context.Context, payload *T) error

// Bind bridges a watermill message to a typed domain handler. Malformed
// payloads are acked as terminal; domain errors are nacked so the retry
// policy and poison queue apply.
func Bind[T any](h *BusHandler, fn DomainHandler[T]) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		// A panic must not take the consumer down with it.
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("bus handler panic recovered",
					"err", r,
					"stack", string(debug.Stack()),
					"msg_id", msg.UUID)
			}
		}()

		payload := new(T)
		if err := json.Unmarshal(msg.Payload, payload); err != nil {
			// Ack: a payload that never decodes will never decode on retry.
			h.logger.Error("bus payload decode failed", "err", err, "msg_id", msg.UUID)
			return nil
		}

		return fn(msg.Context(), payload)
	}
}
