package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/Pabblusansky/Pelegram-sub000/metrics"
)

// HandlerFunc handles one inbound client event. `ack` is the caller's
// correlation id (empty for fire-and-forget events).
type HandlerFunc func(c *Client, data json.RawMessage, ack string) error

type Dispatcher struct {
	handlers map[string]HandlerFunc
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]HandlerFunc)}
}

func (d *Dispatcher) Register(event string, h HandlerFunc) { d.handlers[event] = h }

func (d *Dispatcher) Dispatch(c *Client, f *Frame) error {
	h, ok := d.handlers[f.Event]
	if !ok {
		return fmt.Errorf("no handler for event=%s", f.Event)
	}
	metrics.EventsIn.WithLabelValues(f.Event).Inc()
	return h(c, f.Data, f.Ack)
}
