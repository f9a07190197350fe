package gateway

import (
	"encoding/json"

	"github.com/Pabblusansky/Pelegram-sub000/logger"
	"github.com/Pabblusansky/Pelegram-sub000/metrics"
	"github.com/Pabblusansky/Pelegram-sub000/tools/safe"
)

// Envelope is a room-targeted emission as it crosses the node bridge.
type Envelope struct {
	Origin  string          `json:"origin"` // emitting node id
	Room    string          `json:"room"`
	Except  string          `json:"except,omitempty"` // user id excluded from delivery
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Bridge relays envelopes to sibling gateway nodes. The NATS implementation
// lives in service/natsx; single-node deployments run without one.
type Bridge interface {
	Publish(env Envelope) error
}

type fanoutJob struct {
	conns   []*Client
	payload []byte
}

// Hub implements service.Emitter: it serializes each event once and fans it
// out to the targeted room through a small worker pool. State announced by an
// event is already committed by the time the emitter is invoked.
type Hub struct {
	nodeID string
	rooms  *Rooms
	jobs   chan fanoutJob
	bridge Bridge // nil when single-node
}

func NewHub(nodeID string, rooms *Rooms, workers, queue int) *Hub {
	if workers <= 0 {
		workers = 4
	}
	if queue <= 0 {
		queue = 4096
	}
	h := &Hub{nodeID: nodeID, rooms: rooms, jobs: make(chan fanoutJob, queue)}
	for i := 0; i < workers; i++ {
		safe.Go(func() {
			for job := range h.jobs {
				for _, c := range job.conns {
					c.Enqueue(job.payload)
				}
			}
		})
	}
	return h
}

// SetBridge attaches the cross-node relay; call before serving.
func (h *Hub) SetBridge(b Bridge) { h.bridge = b }

func (h *Hub) ToChat(chatID, event string, payload any) {
	h.emit(ChatRoom(chatID), "", event, payload)
}

func (h *Hub) ToChatExcept(chatID, exceptUserID, event string, payload any) {
	h.emit(ChatRoom(chatID), exceptUserID, event, payload)
}

func (h *Hub) ToUser(userID, event string, payload any) {
	h.emit(UserRoom(userID), "", event, payload)
}

// BroadcastAll reaches every connected session (presence snapshots).
func (h *Hub) BroadcastAll(event string, payload any) {
	frame, err := MarshalFrame(event, payload, "")
	if err != nil {
		logger.Errorf("[hub] marshal %s: %v", event, err)
		return
	}
	metrics.EventsOut.WithLabelValues(event).Inc()
	h.dispatch(h.rooms.AllClients(), frame)
}

func (h *Hub) emit(room, exceptUserID, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Errorf("[hub] marshal %s payload: %v", event, err)
		return
	}
	h.deliverLocal(room, exceptUserID, event, data)
	if h.bridge != nil {
		err := h.bridge.Publish(Envelope{
			Origin:  h.nodeID,
			Room:    room,
			Except:  exceptUserID,
			Event:   event,
			Payload: data,
		})
		if err != nil {
			logger.Warnf("[hub] bridge publish %s: %v", event, err)
		}
	}
}

// DeliverRemote applies an envelope received from another node.
func (h *Hub) DeliverRemote(env Envelope) {
	if env.Origin == h.nodeID {
		return
	}
	h.deliverLocal(env.Room, env.Except, env.Event, env.Payload)
}

func (h *Hub) deliverLocal(room, exceptUserID, event string, payload json.RawMessage) {
	frame, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		logger.Errorf("[hub] marshal %s frame: %v", event, err)
		return
	}
	var conns []*Client
	if exceptUserID == "" {
		conns = h.rooms.Members(room)
	} else {
		conns = h.rooms.MembersExcept(room, exceptUserID)
	}
	metrics.EventsOut.WithLabelValues(event).Inc()
	h.dispatch(conns, frame)
}

func (h *Hub) dispatch(conns []*Client, payload []byte) {
	if len(conns) == 0 || len(payload) == 0 {
		return
	}
	h.jobs <- fanoutJob{conns: conns, payload: payload}
}
