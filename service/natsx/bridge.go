package natsx

import (
	"encoding/json"
	"time"

	"github.com/Pabblusansky/Pelegram-sub000/logger"
	"github.com/Pabblusansky/Pelegram-sub000/service/gateway"
	"github.com/nats-io/nats.go"
	pkgerrors "github.com/pkg/errors"
)

// Bridge relays fan-out envelopes between gateway nodes over NATS.
// Each node publishes every emitted envelope and replays envelopes from
// other origins into its local rooms.
type Bridge struct {
	nc      *nats.Conn
	subject string
	sub     *nats.Subscription
}

type Options struct {
	Servers []string
	Subject string
	Name    string
}

func Connect(opts Options) (*Bridge, error) {
	if opts.Subject == "" {
		opts.Subject = "pelegram.events"
	}
	if opts.Name == "" {
		opts.Name = "pelegram-gateway"
	}
	nc, err := nats.Connect(
		joinServers(opts.Servers),
		nats.Name(opts.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warnf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Infof("nats reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "nats connect")
	}
	return &Bridge{nc: nc, subject: opts.Subject}, nil
}

func joinServers(servers []string) string {
	if len(servers) == 0 {
		return nats.DefaultURL
	}
	out := servers[0]
	for _, s := range servers[1:] {
		out += "," + s
	}
	return out
}

// Publish sends an envelope to every other node.
func (b *Bridge) Publish(env gateway.Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return pkgerrors.Wrap(err, "marshal envelope")
	}
	return pkgerrors.Wrap(b.nc.Publish(b.subject, raw), "publish envelope")
}

// Subscribe feeds remote envelopes into the hub. The hub skips envelopes
// carrying its own origin.
func (b *Bridge) Subscribe(hub *gateway.Hub) error {
	sub, err := b.nc.Subscribe(b.subject, func(msg *nats.Msg) {
		var env gateway.Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			logger.Warnf("bridge: drop malformed envelope: %v", err)
			return
		}
		hub.DeliverRemote(env)
	})
	if err != nil {
		return pkgerrors.Wrap(err, "subscribe")
	}
	b.sub = sub
	return nil
}

func (b *Bridge) Close() {
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	if b.nc != nil {
		_ = b.nc.Drain()
	}
}
