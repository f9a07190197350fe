package gateway

import (
	"encoding/json"
	"fmt"
)

// Frame is the wire envelope for both directions. `ack` is a client-chosen
// correlation id echoed back on the acknowledgement frame for
// request/response style calls (send_message).
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   string          `json:"ack,omitempty"`
}

// Reserved envelope event names (operation events are defined in
// module/chat/service).
const (
	EvAck   = "ack"
	EvError = "error"
)

func ParseFrame(raw []byte) (*Frame, error) {
	f := &Frame{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, fmt.Errorf("unmarshal frame failed: %w", err)
	}
	if f.Event == "" {
		return nil, fmt.Errorf("frame has no event")
	}
	return f, nil
}

// MarshalFrame builds an outbound frame with the payload serialized once, so
// fan-out to N members costs one encode.
func MarshalFrame(event string, payload any, ack string) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", event, err)
		}
		data = b
	}
	return json.Marshal(Frame{Event: event, Data: data, Ack: ack})
}
