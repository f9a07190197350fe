package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Pabblusansky/Pelegram-sub000/logger"
	chatsvc "github.com/Pabblusansky/Pelegram-sub000/module/chat/service"
	"github.com/Pabblusansky/Pelegram-sub000/tools/errs"
	"github.com/Pabblusansky/Pelegram-sub000/tools/ids"
	"github.com/gorilla/websocket"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	ackTimeout     = 10 * time.Second
)

// frame mirrors the wire protocol: one event name, one JSON payload, an
// optional ack correlation id.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   string          `json:"ack,omitempty"`
}

// Handler consumes one inbound event payload.
type Handler func(data json.RawMessage)

type registered struct {
	id string
	fn Handler
}

// Session is one authenticated socket channel. It owns reconnect/backoff and
// room membership: on every (re)connect it rejoins all participant chat
// rooms, not just the open one, so events for background chats still arrive.
type Session struct {
	wsURL  string
	token  string
	selfID string
	api    *API

	mu       sync.Mutex
	conn     *websocket.Conn
	handlers map[string][]registered
	acks     map[string]chan json.RawMessage
	closed   bool
	stopCh   chan struct{}

	// OnReconnect runs after rooms are rejoined; the app re-fetches presence
	// and reloads open-chat history to cover the gap (events are not replayed).
	OnReconnect func()
	// OnAuthExpired fires on a sustained 401; the app must re-authenticate
	// and build a fresh session rather than retry silently.
	OnAuthExpired func()
}

func NewSession(wsURL, token, selfUserID string, api *API) *Session {
	return &Session{
		wsURL:    wsURL,
		token:    token,
		selfID:   selfUserID,
		api:      api,
		handlers: make(map[string][]registered),
		acks:     make(map[string]chan json.RawMessage),
		stopCh:   make(chan struct{}),
	}
}

func (s *Session) UserID() string { return s.selfID }

// On registers a handler for an inbound event and returns its remover.
// Reconnects reuse the same registry, so handlers never stack up across
// re-dials; closing a chat view calls the removers to detach its handlers.
func (s *Session) On(event string, h Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := ids.GenerateString()
	s.handlers[event] = append(s.handlers[event], registered{id: id, fn: h})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		hs := s.handlers[event]
		for i, r := range hs {
			if r.id == id {
				s.handlers[event] = append(hs[:i], hs[i+1:]...)
				return
			}
		}
	}
}

// Connect dials the channel and starts the read loop.
func (s *Session) Connect(ctx context.Context) error {
	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	go s.readLoop(conn)
	return s.joinAllChats(ctx)
}

func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(s.wsURL)
	if err != nil {
		return nil, errs.ErrBadRequest.WrapMsg("bad ws url", "url", s.wsURL)
	}
	q := u.Query()
	q.Set("token", s.token)
	u.RawQuery = q.Encode()
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, errs.ErrUnauthorized.WrapMsg("handshake rejected")
		}
		return nil, errs.ErrInternal.WrapMsg("dial", "err", err)
	}
	return conn, nil
}

// joinAllChats (re-)issues an idempotent join for every chat the user
// participates in.
func (s *Session) joinAllChats(ctx context.Context) error {
	chats, err := s.api.ListChats(ctx)
	if err != nil {
		return err
	}
	for _, c := range chats {
		if err := s.Emit(chatsvc.EvJoinChat, map[string]string{"chatId": c.ID}); err != nil {
			return err
		}
	}
	return nil
}

// Emit sends a fire-and-forget event.
func (s *Session) Emit(event string, payload any) error {
	return s.write(frame{Event: event, Data: mustRaw(payload)})
}

// Request sends an event and waits for its acknowledgement frame. Send uses
// this: the ack carries the saved message for optimistic reconciliation, or
// a coded error for rollback.
func (s *Session) Request(ctx context.Context, event string, payload any) (json.RawMessage, error) {
	ackID := ids.GenerateString()
	ch := make(chan json.RawMessage, 1)
	s.mu.Lock()
	s.acks[ackID] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.acks, ackID)
		s.mu.Unlock()
	}()

	if err := s.write(frame{Event: event, Data: mustRaw(payload), Ack: ackID}); err != nil {
		return nil, err
	}
	timer := time.NewTimer(ackTimeout)
	defer timer.Stop()
	select {
	case raw := <-ch:
		var ce errs.CodeError
		if json.Unmarshal(raw, &ce) == nil && ce.Code != 0 && ce.Code != 200 {
			return nil, errs.NewCodeError(ce.Code, ce.Msg).WrapMsg("")
		}
		return raw, nil
	case <-timer.C:
		return nil, errs.ErrInternal.WrapMsg("ack timeout", "event", event)
	case <-ctx.Done():
		return nil, errs.ErrInternal.WrapMsg("canceled", "event", event)
	}
}

func (s *Session) write(f frame) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return errs.ErrBadRequest.WrapMsg("marshal frame", "err", err)
	}
	// Holding mu serializes writers; the websocket allows one at a time.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return errs.ErrInternal.WrapMsg("not connected")
	}
	return s.conn.WriteMessage(websocket.TextMessage, raw)
}

func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.onDisconnect(conn)
			return
		}
		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			logger.Warnf("session: drop malformed frame: %v", err)
			continue
		}
		// Any frame carrying the correlation id resolves the waiting request:
		// success acks and error replies alike. The payload distinguishes
		// them, a coded error body rolls optimistic state back.
		if f.Ack != "" {
			s.mu.Lock()
			ch := s.acks[f.Ack]
			s.mu.Unlock()
			if ch != nil {
				ch <- f.Data
				continue
			}
		}
		s.dispatch(f)
	}
}

func (s *Session) dispatch(f frame) {
	s.mu.Lock()
	hs := append([]registered(nil), s.handlers[f.Event]...)
	s.mu.Unlock()
	for _, h := range hs {
		h.fn(f.Data)
	}
}

// onDisconnect tears the dead connection down and re-dials with doubling
// backoff. A rejected credential stops the loop; everything else retries
// until Close.
func (s *Session) onDisconnect(old *websocket.Conn) {
	s.mu.Lock()
	if s.closed || s.conn != old {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.mu.Unlock()
	_ = old.Close()

	backoff := initialBackoff
	for {
		select {
		case <-s.stopCh:
			return
		case <-time.After(backoff):
		}
		conn, err := s.dial(context.Background())
		if err != nil {
			if errs.Code(err) == errs.CodeUnauthorized {
				logger.Warn("session: credential rejected, re-authentication required")
				if s.OnAuthExpired != nil {
					s.OnAuthExpired()
				}
				return
			}
			logger.Warnf("session: reconnect failed, retrying in %s: %v", backoff, err)
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conn = conn
		s.mu.Unlock()
		go s.readLoop(conn)
		if err := s.joinAllChats(context.Background()); err != nil {
			logger.Warnf("session: rejoin after reconnect: %v", err)
		}
		if s.OnReconnect != nil {
			s.OnReconnect()
		}
		return
	}
}

// Close tears the session down; no further reconnects.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	close(s.stopCh)
	if conn != nil {
		_ = conn.Close()
	}
}

func mustRaw(payload any) json.RawMessage {
	if payload == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return raw
}
