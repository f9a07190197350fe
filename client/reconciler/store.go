package reconciler

import (
	"sort"
	"time"

	"github.com/Pabblusansky/Pelegram-sub000/module/chat/model"
)

// Transient is client-only UI state for one message. It lives beside the
// server-shaped data, so a server echo can never wipe it and a local flag can
// never leak into outbound payloads.
type Transient struct {
	Selected bool
	Editing  bool
	// PendingContent is the content of an edit the user issued that the
	// server has not echoed back yet.
	PendingContent string
}

// Entry is one element of the rendered sequence: *Message or DateDivider.
type Entry interface{ isEntry() }

type MessageEntry struct {
	*Message
	Transient Transient
	Mine      bool
}

func (MessageEntry) isEntry() {}

// DateDivider is a synthetic row marking a calendar-day change.
type DateDivider struct {
	Day       string // YYYY-MM-DD in the viewer's location
	Timestamp int64
}

func (DateDivider) isEntry() {}

// Store is the reconciled view of one open chat: an ordered, duplicate-free
// message sequence merged from socket pushes, the send ack, initial load,
// pagination and context fetches.
type Store struct {
	chatID    string
	selfID    string
	loc       *time.Location
	byID      map[string]*Message
	order     []*Message
	transient map[string]*Transient
	// noMoreOlder is terminal for the lifetime of the store; reopening the
	// chat builds a fresh store.
	noMoreOlder bool
}

func NewStore(chatID, selfUserID string, loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{
		chatID:    chatID,
		selfID:    selfUserID,
		loc:       loc,
		byID:      make(map[string]*Message),
		transient: make(map[string]*Transient),
	}
}

func (s *Store) ChatID() string { return s.chatID }
func (s *Store) Len() int       { return len(s.order) }

// Upsert merges one inbound message by id. A duplicate arrival (ack racing
// the room broadcast) is a no-op merge, never a second entry. Messages for
// other chats are ignored outright.
func (s *Store) Upsert(m *Message) bool {
	if m == nil || m.ID == "" || m.ChatID != s.chatID {
		return false
	}
	if existing, ok := s.byID[m.ID]; ok {
		existing.merge(m)
		return false
	}
	cp := *m
	s.byID[cp.ID] = &cp
	s.insertOrdered(&cp)
	return true
}

// UpsertAll merges a fetched page; returns how many were new.
func (s *Store) UpsertAll(msgs []*Message) int {
	added := 0
	for _, m := range msgs {
		if s.Upsert(m) {
			added++
		}
	}
	return added
}

func (s *Store) insertOrdered(m *Message) {
	i := sort.Search(len(s.order), func(i int) bool { return m.before(s.order[i]) })
	s.order = append(s.order, nil)
	copy(s.order[i+1:], s.order[i:])
	s.order[i] = m
}

// Get returns the stored message, if loaded.
func (s *Store) Get(id string) (*Message, bool) {
	m, ok := s.byID[id]
	return m, ok
}

// Remove deletes a message from the view. The caller also withdraws it from
// any active search subsequence.
func (s *Store) Remove(id string) bool {
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	delete(s.transient, id)
	for i, m := range s.order {
		if m.ID == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// ApplyStatus raises a message's status; a lower-ranked arrival is dropped.
func (s *Store) ApplyStatus(id string, status model.MessageStatus) bool {
	m, ok := s.byID[id]
	if !ok {
		return false
	}
	next := model.MaxStatus(m.Status, status)
	if next == m.Status {
		return false
	}
	m.Status = next
	return true
}

// ApplyReactions replaces the full reaction set; payloads carry the complete
// resulting set so application is order independent.
func (s *Store) ApplyReactions(id string, reactions []model.Reaction) bool {
	m, ok := s.byID[id]
	if !ok {
		return false
	}
	m.Reactions = reactions
	return true
}

// BeginEdit records a locally issued edit so a late echo of an older edit
// cannot clobber it.
func (s *Store) BeginEdit(id, pendingContent string) {
	t := s.ensureTransient(id)
	t.Editing = true
	t.PendingContent = pendingContent
}

// ApplyEdit merges a server-confirmed edit. The editing transient clears only
// when the echo matches the content the user last issued; an echo of a
// superseded first edit leaves the second edit pending.
func (s *Store) ApplyEdit(m *Message) {
	s.Upsert(m)
	t, ok := s.transient[m.ID]
	if !ok {
		return
	}
	if t.PendingContent == "" || t.PendingContent == m.Content {
		t.Editing = false
		t.PendingContent = ""
	}
}

// CancelEdit drops local edit state without waiting for the server.
func (s *Store) CancelEdit(id string) {
	if t, ok := s.transient[id]; ok {
		t.Editing = false
		t.PendingContent = ""
	}
}

func (s *Store) SetSelected(id string, selected bool) {
	s.ensureTransient(id).Selected = selected
}

func (s *Store) SelectedIDs() []string {
	out := make([]string, 0)
	for _, m := range s.order {
		if t, ok := s.transient[m.ID]; ok && t.Selected {
			out = append(out, m.ID)
		}
	}
	return out
}

func (s *Store) ensureTransient(id string) *Transient {
	t, ok := s.transient[id]
	if !ok {
		t = &Transient{}
		s.transient[id] = t
	}
	return t
}

// Mine decides ownership from the local credential, never from a possibly
// stale echoed sender field.
func (s *Store) Mine(m *Message) bool { return m.Sender.ID == s.selfID }

// OldestID anchors the next "load older" fetch.
func (s *Store) OldestID() string {
	if len(s.order) == 0 {
		return ""
	}
	return s.order[0].ID
}

func (s *Store) SetNoMoreOlder()   { s.noMoreOlder = true }
func (s *Store) NoMoreOlder() bool { return s.noMoreOlder }

// Rendered flattens the store into the display sequence, recomputing date
// dividers from scratch on every call. Pending edit content overlays the
// server copy until the echo lands.
func (s *Store) Rendered() []Entry {
	out := make([]Entry, 0, len(s.order)+8)
	lastDay := ""
	for _, m := range s.order {
		day := time.UnixMilli(m.CreatedAt).In(s.loc).Format("2006-01-02")
		if day != lastDay {
			out = append(out, DateDivider{Day: day, Timestamp: m.CreatedAt})
			lastDay = day
		}
		e := MessageEntry{Message: m, Mine: s.Mine(m)}
		if t, ok := s.transient[m.ID]; ok {
			e.Transient = *t
			if t.PendingContent != "" {
				cp := *m
				cp.Content = t.PendingContent
				cp.Edited = true
				e.Message = &cp
			}
		}
		out = append(out, e)
	}
	return out
}

// Messages returns the ordered server-shaped sequence.
func (s *Store) Messages() []*Message {
	out := make([]*Message, len(s.order))
	copy(out, s.order)
	return out
}
