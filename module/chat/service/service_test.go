package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Pabblusansky/Pelegram-sub000/module/chat/model"
	"github.com/Pabblusansky/Pelegram-sub000/tools/errs"
)

// fakeStore is a map-backed Store good enough to exercise every mutation
// path without Mongo.
type fakeStore struct {
	chats map[string]*model.Chat
	msgs  map[string]*model.Message
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		chats: make(map[string]*model.Chat),
		msgs:  make(map[string]*model.Message),
	}
}

func (f *fakeStore) addChat(c *model.Chat) *model.Chat {
	if c.UnreadCounts == nil {
		c.UnreadCounts = model.NewUnreadCounts(c.Participants)
	}
	f.chats[c.ID] = c
	return c
}

func cloneMsg(m *model.Message) *model.Message {
	cp := *m
	cp.Reactions = append([]model.Reaction(nil), m.Reactions...)
	return &cp
}

func cloneChat(c *model.Chat) *model.Chat {
	cp := *c
	cp.Participants = append([]string(nil), c.Participants...)
	cp.UnreadCounts = append([]model.UnreadCount(nil), c.UnreadCounts...)
	return &cp
}

func (f *fakeStore) InsertMessage(_ context.Context, m *model.Message) error {
	f.msgs[m.ID] = cloneMsg(m)
	return nil
}

func (f *fakeStore) GetMessage(_ context.Context, id string) (*model.Message, error) {
	m, ok := f.msgs[id]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("message", "id", id)
	}
	return cloneMsg(m), nil
}

func (f *fakeStore) UpdateMessageContent(_ context.Context, id, content string, editedAt int64) (*model.Message, error) {
	m, ok := f.msgs[id]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("message", "id", id)
	}
	m.Content = content
	m.Edited = true
	m.EditedAt = editedAt
	return cloneMsg(m), nil
}

func (f *fakeStore) DeleteMessages(_ context.Context, chatID string, ids []string) (int64, error) {
	var n int64
	for _, id := range ids {
		if m, ok := f.msgs[id]; ok && m.ChatID == chatID {
			delete(f.msgs, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) SetMessageStatusIf(_ context.Context, id string, from, to model.MessageStatus) (bool, error) {
	m, ok := f.msgs[id]
	if !ok || m.Status != from {
		return false, nil
	}
	m.Status = to
	return true, nil
}

func (f *fakeStore) MarkChatRead(_ context.Context, chatID, readerID string) ([]string, error) {
	var affected []string
	for id, m := range f.msgs {
		if m.ChatID != chatID || m.SenderID == readerID || m.Status == model.StatusRead || m.Category != model.CategoryUserContent {
			continue
		}
		m.Status = model.StatusRead
		affected = append(affected, id)
	}
	sort.Strings(affected)
	return affected, nil
}

func (f *fakeStore) ToggleReaction(_ context.Context, messageID, userID, emoji string, now int64) (*model.Message, error) {
	m, ok := f.msgs[messageID]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("message", "id", messageID)
	}
	kept := m.Reactions[:0]
	removedSame := false
	for _, r := range m.Reactions {
		if r.UserID != userID {
			kept = append(kept, r)
			continue
		}
		if r.Emoji == emoji {
			removedSame = true
		}
	}
	m.Reactions = kept
	if !removedSame {
		m.Reactions = append(m.Reactions, model.Reaction{UserID: userID, Emoji: emoji, UpdatedAt: now})
	}
	return cloneMsg(m), nil
}

func (f *fakeStore) ListMessages(_ context.Context, chatID, beforeID string, limit int) ([]*model.Message, error) {
	msgs := f.chatMessages(chatID)
	end := len(msgs)
	if beforeID != "" {
		for i, m := range msgs {
			if m.ID == beforeID {
				end = i
				break
			}
		}
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	out := make([]*model.Message, 0, end-start)
	for _, m := range msgs[start:end] {
		out = append(out, cloneMsg(m))
	}
	return out, nil
}

func (f *fakeStore) ContextAround(_ context.Context, chatID, messageID string, radius int) ([]*model.Message, error) {
	msgs := f.chatMessages(chatID)
	at := -1
	for i, m := range msgs {
		if m.ID == messageID {
			at = i
			break
		}
	}
	if at < 0 {
		return nil, errs.ErrNotFound.WrapMsg("message", "id", messageID)
	}
	lo, hi := at-radius, at+radius+1
	if lo < 0 {
		lo = 0
	}
	if hi > len(msgs) {
		hi = len(msgs)
	}
	out := make([]*model.Message, 0, hi-lo)
	for _, m := range msgs[lo:hi] {
		out = append(out, cloneMsg(m))
	}
	return out, nil
}

func (f *fakeStore) SearchMessages(_ context.Context, chatID, query string, limit int) ([]*model.Message, error) {
	var out []*model.Message
	for _, m := range f.chatMessages(chatID) {
		if len(out) >= limit {
			break
		}
		if containsFold(m.Content, query) {
			out = append(out, cloneMsg(m))
		}
	}
	return out, nil
}

func (f *fakeStore) chatMessages(chatID string) []*model.Message {
	var msgs []*model.Message
	for _, m := range f.msgs {
		if m.ChatID == chatID {
			msgs = append(msgs, m)
		}
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt != msgs[j].CreatedAt {
			return msgs[i].CreatedAt < msgs[j].CreatedAt
		}
		return msgs[i].ID < msgs[j].ID
	})
	return msgs
}

func (f *fakeStore) CreateChat(_ context.Context, c *model.Chat) error {
	f.chats[c.ID] = cloneChat(c)
	return nil
}

func (f *fakeStore) GetChat(_ context.Context, id string) (*model.Chat, error) {
	c, ok := f.chats[id]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("chat", "id", id)
	}
	return cloneChat(c), nil
}

func (f *fakeStore) ListChats(_ context.Context, userID string) ([]*model.Chat, error) {
	var out []*model.Chat
	for _, c := range f.chats {
		if c.HasParticipant(userID) {
			out = append(out, cloneChat(c))
		}
	}
	return out, nil
}

func (f *fakeStore) ApplySend(_ context.Context, chatID string, msg *model.Message) (*model.Chat, error) {
	c, ok := f.chats[chatID]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("chat", "id", chatID)
	}
	c.LastMessage = cloneMsg(msg)
	c.UpdatedAt = msg.CreatedAt
	c.MessageCount++
	if msg.Category == model.CategoryUserContent {
		for i := range c.UnreadCounts {
			if c.UnreadCounts[i].UserID != msg.SenderID {
				c.UnreadCounts[i].Count++
			}
		}
	}
	return cloneChat(c), nil
}

func (f *fakeStore) RecomputeLastMessage(_ context.Context, chatID string) (*model.Chat, error) {
	c, ok := f.chats[chatID]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("chat", "id", chatID)
	}
	msgs := f.chatMessages(chatID)
	if len(msgs) == 0 {
		c.LastMessage = nil
	} else {
		c.LastMessage = cloneMsg(msgs[len(msgs)-1])
	}
	return cloneChat(c), nil
}

func (f *fakeStore) ResetUnread(_ context.Context, chatID, userID string) (*model.Chat, error) {
	c, ok := f.chats[chatID]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("chat", "id", chatID)
	}
	for i := range c.UnreadCounts {
		if c.UnreadCounts[i].UserID == userID {
			c.UnreadCounts[i].Count = 0
		}
	}
	return cloneChat(c), nil
}

func (f *fakeStore) SetPinned(_ context.Context, chatID, messageID string) (*model.Chat, error) {
	c, ok := f.chats[chatID]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("chat", "id", chatID)
	}
	c.PinnedMsgID = messageID
	return cloneChat(c), nil
}

func (f *fakeStore) ClearPinnedIf(_ context.Context, chatID, messageID string) (*model.Chat, error) {
	c, ok := f.chats[chatID]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("chat", "id", chatID)
	}
	if c.PinnedMsgID == messageID {
		c.PinnedMsgID = ""
	}
	return cloneChat(c), nil
}

func (f *fakeStore) DeleteChat(_ context.Context, chatID string) error {
	delete(f.chats, chatID)
	for id, m := range f.msgs {
		if m.ChatID == chatID {
			delete(f.msgs, id)
		}
	}
	return nil
}

func (f *fakeStore) RemoveParticipant(_ context.Context, chatID, userID string) (*model.Chat, error) {
	c, ok := f.chats[chatID]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("chat", "id", chatID)
	}
	for i, p := range c.Participants {
		if p == userID {
			c.Participants = append(c.Participants[:i], c.Participants[i+1:]...)
			break
		}
	}
	for i, u := range c.UnreadCounts {
		if u.UserID == userID {
			c.UnreadCounts = append(c.UnreadCounts[:i], c.UnreadCounts[i+1:]...)
			break
		}
	}
	return cloneChat(c), nil
}

func containsFold(haystack, needle string) bool {
	h, n := []rune(haystack), []rune(needle)
	for i := 0; i+len(n) <= len(h); i++ {
		ok := true
		for j := range n {
			a, b := h[i+j], n[j]
			if 'A' <= a && a <= 'Z' {
				a += 'a' - 'A'
			}
			if 'A' <= b && b <= 'Z' {
				b += 'a' - 'A'
			}
			if a != b {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// emitted is one recorded fan-out call.
type emitted struct {
	Room    string // "chat:<id>", "user:<id>"
	Except  string
	Event   string
	Payload any
}

type fakeEmitter struct {
	events []emitted
}

func (f *fakeEmitter) ToChat(chatID, event string, payload any) {
	f.events = append(f.events, emitted{Room: "chat:" + chatID, Event: event, Payload: payload})
}

func (f *fakeEmitter) ToChatExcept(chatID, exceptUserID, event string, payload any) {
	f.events = append(f.events, emitted{Room: "chat:" + chatID, Except: exceptUserID, Event: event, Payload: payload})
}

func (f *fakeEmitter) ToUser(userID, event string, payload any) {
	f.events = append(f.events, emitted{Room: "user:" + userID, Event: event, Payload: payload})
}

func (f *fakeEmitter) byEvent(event string) []emitted {
	var out []emitted
	for _, e := range f.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// manualScheduler collects callbacks and fires them on demand.
type manualScheduler struct {
	pending []func()
}

func (m *manualScheduler) AfterFunc(_ time.Duration, f func()) {
	m.pending = append(m.pending, f)
}

func (m *manualScheduler) fire() {
	pending := m.pending
	m.pending = nil
	for _, f := range pending {
		f()
	}
}

// newTestService wires a ChatService against the fakes with a fixed clock and
// sequential ids.
func newTestService() (*ChatService, *fakeStore, *fakeEmitter, *manualScheduler) {
	st := newFakeStore()
	em := &fakeEmitter{}
	sched := &manualScheduler{}
	n := 0
	svc := New(st, em, Options{
		DeliveredAfter: time.Second,
		Clock:          func() time.Time { return time.UnixMilli(1_700_000_000_000) },
		Scheduler:      sched,
		NewID: func() string {
			n++
			return fmt.Sprintf("m%03d", n)
		},
	})
	return svc, st, em, sched
}
