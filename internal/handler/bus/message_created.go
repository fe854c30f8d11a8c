package bus

import (
	"context"
	"fmt"

	"github.com/utc2/chat-delivery-service/internal/service/dto"
)

// OnMessageCreated runs the fan-out for one persisted message. An invalid
// payload is terminal and acked; a membership fetch failure is returned so
// the retry policy re-runs the fan-out.
func (h *BusHandler) OnMessageCreated(ctx context.Context, raw *dto.MessageCreatedV1) error {
	msg := raw.ToDomain()
	if err := msg.Validate(); err != nil {
		h.logger.Warn("discarding invalid message event", "message_id", raw.MessageID, "err", err)
		return nil
	}

	if err := h.broadcaster.Broadcast(ctx, msg); err != nil {
		return fmt.Errorf("broadcast of message %s: %w", raw.MessageID, err)
	}
	return nil
}
