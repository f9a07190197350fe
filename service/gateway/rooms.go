package gateway

import (
	"sync"
)

// Room name helpers. A chat room reaches every joined participant session; a
// user room reaches all devices of one user, whether or not they joined any
// chat room yet.
func ChatRoom(chatID string) string { return "chat:" + chatID }
func UserRoom(userID string) string { return "user:" + userID }

// Rooms is the broadcast-group registry: room -> conn_id -> client, with a
// reverse index for teardown.
type Rooms struct {
	mu     sync.RWMutex
	byRoom map[string]map[string]*Client
	byConn map[string]map[string]struct{} // conn_id -> set of rooms
}

func NewRooms() *Rooms {
	return &Rooms{
		byRoom: make(map[string]map[string]*Client),
		byConn: make(map[string]map[string]struct{}),
	}
}

// Join is idempotent: re-joining an already joined room is a no-op, which is
// what lets a session re-issue joins for every participant chat on reconnect.
func (r *Rooms) Join(room string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.byRoom[room]
	if m == nil {
		m = make(map[string]*Client)
		r.byRoom[room] = m
	}
	m[c.ConnID] = c

	rs := r.byConn[c.ConnID]
	if rs == nil {
		rs = make(map[string]struct{})
		r.byConn[c.ConnID] = rs
	}
	rs[room] = struct{}{}
}

func (r *Rooms) Leave(room string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(room, c.ConnID)
}

// LeaveAll removes the connection from every room it joined.
func (r *Rooms) LeaveAll(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for room := range r.byConn[c.ConnID] {
		r.leaveLocked(room, c.ConnID)
	}
	delete(r.byConn, c.ConnID)
}

func (r *Rooms) leaveLocked(room, connID string) {
	if m := r.byRoom[room]; m != nil {
		delete(m, connID)
		if len(m) == 0 {
			delete(r.byRoom, room)
		}
	}
	if rs := r.byConn[connID]; rs != nil {
		delete(rs, room)
	}
}

// Members snapshots the clients currently joined to a room.
func (r *Rooms) Members(room string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.byRoom[room]
	if len(m) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}

// MembersExcept snapshots a room minus every connection of one user.
func (r *Rooms) MembersExcept(room, exceptUserID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.byRoom[room]
	if len(m) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(m))
	for _, c := range m {
		if c.UserID == exceptUserID {
			continue
		}
		out = append(out, c)
	}
	return out
}

// AllClients snapshots every registered connection (presence broadcast).
func (r *Rooms) AllClients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]*Client)
	for _, m := range r.byRoom {
		for id, c := range m {
			seen[id] = c
		}
	}
	out := make([]*Client, 0, len(seen))
	for _, c := range seen {
		out = append(out, c)
	}
	return out
}
