// Package pushmarshaller maps domain delivery events to the JSON wire shape
// shared by the SSE and WebSocket transports.
package pushmarshaller

import (
	"encoding/json"
	"fmt"

	"github.com/utc2/chat-delivery-service/internal/domain/event"
	"github.com/utc2/chat-delivery-service/internal/domain/model"
)

// PushEvent is the tagged union sent down a push channel. It carries no
// sequencing or acknowledgement metadata.
type PushEvent struct {
	Type string `json:"type"`

	// connected
	Identity      string `json:"identity,omitempty"`
	ConnectionID  string `json:"connection_id,omitempty"`
	ServerVersion string `json:"server_version,omitempty"`

	// ping
	Timestamp int64 `json:"timestamp,omitempty"`

	// message
	Data *WireMessage `json:"data,omitempty"`
}

// WireMessage is the message payload enriched with the resolved sender
// display name.
type WireMessage struct {
	ID         string `json:"id"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name,omitempty"`
	ReceiverID string `json:"receiver_id,omitempty"`
	RoomID     string `json:"room_id,omitempty"`
	Body       string `json:"body"`
	CreatedAt  int64  `json:"created_at"`
	Read       bool   `json:"read"`
}

// MarshalDeliveryEvent serializes one event. The encoded form is cached on
// the event so repeated marshalling of the same event stays a lookup.
func MarshalDeliveryEvent(ev event.Eventer) ([]byte, error) {
	if cached := ev.GetCached(); cached != nil {
		if data, ok := cached.([]byte); ok {
			return data, nil
		}
	}

	out := &PushEvent{Type: ev.GetKind().String()}

	switch p := ev.GetPayload().(type) {
	case *model.Message:
		out.Data = MapMessage(p)
	case *model.ConnectedPayload:
		out.Identity = p.Identity
		out.ConnectionID = p.ConnectionID
		out.ServerVersion = p.ServerVersion
	case *model.PingPayload:
		out.Timestamp = p.Timestamp
	default:
		return nil, fmt.Errorf("pushmarshaller: unsupported payload %T", p)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}

	ev.SetCached(data)
	return data, nil
}

// MapMessage converts a domain message to its wire shape. The REST surface
// reuses it so list responses match what the push channel delivers.
func MapMessage(m *model.Message) *WireMessage {
	w := &WireMessage{
		ID:         m.ID.String(),
		SenderID:   m.SenderID.String(),
		SenderName: m.SenderName,
		Body:       m.Body,
		CreatedAt:  m.CreatedAt.UnixMilli(),
		Read:       m.Read,
	}
	if m.ReceiverID != nil {
		w.ReceiverID = m.ReceiverID.String()
	}
	if m.RoomID != nil {
		w.RoomID = m.RoomID.String()
	}
	return w
}
