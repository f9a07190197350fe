package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Pabblusansky/Pelegram-sub000/tools/errs"
	"github.com/gorilla/websocket"
)

// reply maps a request event to the frame the fake gateway answers with.
type wsReply func(req frame) *frame

func newWSServer(t *testing.T, reply wsReply) (*httptest.Server, string) {
	t.Helper()
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req frame
			if json.Unmarshal(raw, &req) != nil {
				continue
			}
			if resp := reply(req); resp != nil {
				out, _ := json.Marshal(resp)
				if conn.WriteMessage(websocket.TextMessage, out) != nil {
					return
				}
			}
		}
	}))
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

// connect dials without the chat-list rejoin so no HTTP API is needed.
func connect(t *testing.T, s *Session) {
	t.Helper()
	conn, err := s.dial(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	go s.readLoop(conn)
}

func TestRequestResolvesErrorReply(t *testing.T) {
	srv, wsURL := newWSServer(t, func(req frame) *frame {
		if req.Ack == "" {
			return nil
		}
		data, _ := json.Marshal(map[string]any{"code": 403, "msg": "forbidden"})
		return &frame{Event: "error", Data: data, Ack: req.Ack}
	})
	defer srv.Close()

	s := NewSession(wsURL, "tok", "me", nil)
	defer s.Close()
	connect(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	start := time.Now()
	_, err := s.Request(ctx, "send_message", map[string]string{"chatId": "c1"})
	if err == nil {
		t.Fatal("want coded error from error reply")
	}
	if got := errs.Code(err); got != errs.CodeForbidden {
		t.Errorf("code = %d, want %d", got, errs.CodeForbidden)
	}
	// The reply must resolve the request, not strand it until the deadline.
	if time.Since(start) > 2*time.Second {
		t.Error("request waited out the deadline instead of resolving")
	}
}

func TestRequestResolvesAck(t *testing.T) {
	srv, wsURL := newWSServer(t, func(req frame) *frame {
		if req.Ack == "" {
			return nil
		}
		data, _ := json.Marshal(map[string]string{"_id": "m1", "content": "hi"})
		return &frame{Event: "ack", Data: data, Ack: req.Ack}
	})
	defer srv.Close()

	s := NewSession(wsURL, "tok", "me", nil)
	defer s.Close()
	connect(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	raw, err := s.Request(ctx, "send_message", map[string]string{"chatId": "c1"})
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(raw, &got); err != nil || got.ID != "m1" {
		t.Errorf("ack payload = %s, want _id m1", raw)
	}
}
