package gateway

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Pabblusansky/Pelegram-sub000/logger"
	"github.com/Pabblusansky/Pelegram-sub000/metrics"
	chatsvc "github.com/Pabblusansky/Pelegram-sub000/module/chat/service"
	"github.com/Pabblusansky/Pelegram-sub000/service/presence"
	"github.com/Pabblusansky/Pelegram-sub000/tools/ids"
	"github.com/Pabblusansky/Pelegram-sub000/tools/safe"
	"github.com/Pabblusansky/Pelegram-sub000/tools/security"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server owns the socket side of the gateway: upgrades, authentication,
// auto-join of all participant chat rooms, the read loop, and teardown.
type Server struct {
	rooms    *Rooms
	hub      *Hub
	disp     *Dispatcher
	svc      *chatsvc.ChatService
	presence *presence.Tracker
	jwtOpts  security.Options
}

func NewServer(rooms *Rooms, hub *Hub, svc *chatsvc.ChatService, tracker *presence.Tracker, jwtOpts security.Options) *Server {
	s := &Server{
		rooms:    rooms,
		hub:      hub,
		disp:     NewDispatcher(),
		svc:      svc,
		presence: tracker,
		jwtOpts:  jwtOpts,
	}
	s.registerHandlers()
	return s
}

func (s *Server) Hub() *Hub { return s.hub }

// HandleWS upgrades one connection. The bearer credential rides the query
// string; a bad credential terminates the connection immediately, with no
// server-side retry.
func (s *Server) HandleWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	userID, err := security.Verify(s.jwtOpts, token)
	if err != nil {
		logger.Infof("[gateway] auth failed: %v", err)
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	name := c.Query("name") // display name snapshot, optional

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[gateway] upgrade failed: %v", err)
		return
	}

	client := NewClient(ids.GenerateString(), userID, name, ws)
	metrics.WSConnections.Inc()
	safe.Go(client.writePump)

	// Private per-user room first: targeted pushes (new_chat_created) must
	// reach the user before they join any chat room.
	s.rooms.Join(UserRoom(userID), client)

	// Join every chat the user participates in, not just the open one, so
	// events for background chats are delivered too. Join is idempotent;
	// the client re-issues join_chat per chat after reconnect as well.
	s.autoJoin(client)

	s.presence.RecordActivity(userID)

	// Hand the connecting session the current presence snapshot directly;
	// the periodic broadcast only fires on changes.
	if frame, err := MarshalFrame(chatsvc.EvUserStatusUpdate, s.presence.Snapshot(), ""); err == nil {
		client.Enqueue(frame)
	}

	s.readLoop(client)

	// ---- teardown ----
	s.rooms.LeaveAll(client)
	client.Close()
	metrics.WSConnections.Dec()
	if !s.userStillConnected(userID) {
		s.presence.SetOffline(userID)
	}
}

func (s *Server) autoJoin(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	chats, err := s.svc.Store().ListChats(ctx, client.UserID)
	if err != nil {
		logger.Warnf("[gateway] auto-join list chats user=%s: %v", client.UserID, err)
		return
	}
	for _, chat := range chats {
		s.rooms.Join(ChatRoom(chat.ID), client)
	}
}

func (s *Server) readLoop(client *Client) {
	for {
		mt, data, err := client.WS.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[gateway] peer closed conn=%s", client.ConnID)
			} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
				logger.Infof("[gateway] read timeout conn=%s err=%v", client.ConnID, err)
			} else {
				logger.Infof("[gateway] read err conn=%s err=%v", client.ConnID, err)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		frame, err := ParseFrame(data)
		if err != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Infof("[gateway] bad frame conn=%s err=%v sample=%q", client.ConnID, err, sample)
			continue
		}

		// Every inbound event is an activity signal.
		s.presence.RecordActivity(client.UserID)

		if err := s.disp.Dispatch(client, frame); err != nil {
			logger.Infof("[gateway] dispatch %s conn=%s err=%v", frame.Event, client.ConnID, err)
		}
	}
}

func (s *Server) userStillConnected(userID string) bool {
	return len(s.rooms.Members(UserRoom(userID))) > 0
}
