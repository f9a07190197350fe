package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Pabblusansky/Pelegram-sub000/logger"
	"github.com/Pabblusansky/Pelegram-sub000/metrics"
)

const (
	sendQueueSize = 256
	writeDeadline = 5 * time.Second
	pingEvery     = 25 * time.Second
)

// Client is one device session on the gateway. A user may hold several at
// once; room membership is per connection. All writes go through the Send
// queue so exactly one goroutine touches the websocket writer.
type Client struct {
	ConnID string
	UserID string
	Name   string // display name snapshot from the credential
	WS     *websocket.Conn
	Send   chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(connID, userID, name string, ws *websocket.Conn) *Client {
	return &Client{
		ConnID: connID,
		UserID: userID,
		Name:   name,
		WS:     ws,
		Send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// Enqueue hands a payload to the writer. A slow client drops payloads rather
// than blocking the fan-out; HTTP fetch-on-open is the catch-up path.
func (c *Client) Enqueue(payload []byte) {
	select {
	case c.Send <- payload:
	case <-c.done:
	default:
		metrics.FanoutDropped.Inc()
		logger.Warnf("[gateway] send queue full, dropping payload conn=%s user=%s", c.ConnID, c.UserID)
	}
}

// Close releases the writer and the underlying socket. Idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.WS.Close()
	})
}

// writePump is the single writer goroutine for this connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case payload, ok := <-c.Send:
			if !ok {
				return
			}
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.WS.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Infof("[gateway] write failed conn=%s err=%v", c.ConnID, err)
				return
			}
		case <-ticker.C:
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.WS.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
