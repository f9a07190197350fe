package reconciler

import (
	"context"

	"github.com/Pabblusansky/Pelegram-sub000/tools/errs"
)

// SearchFetch returns the timestamp-ordered matches for a query in one chat.
type SearchFetch func(ctx context.Context, chatID, query string, limit int) ([]*Message, error)

// ContextFetch returns the messages surrounding one message id.
type ContextFetch func(ctx context.Context, chatID, messageID string, radius int) ([]*Message, error)

// Search holds the active search subsequence and its cursor for one chat.
// Results are message ids into the store; deleting a message withdraws it
// here too.
type Search struct {
	store   *Store
	fetch   SearchFetch
	context ContextFetch
	radius  int

	active  bool
	query   string
	results []string
	cursor  int
}

func NewSearch(store *Store, fetch SearchFetch, contextFetch ContextFetch, radius int) *Search {
	if radius <= 0 {
		radius = 10
	}
	return &Search{store: store, fetch: fetch, context: contextFetch, radius: radius}
}

func (s *Search) Active() bool  { return s.active }
func (s *Search) Query() string { return s.query }
func (s *Search) Results() []string {
	out := make([]string, len(s.results))
	copy(out, s.results)
	return out
}

// Run executes a query. Zero matches leaves search mode active with an empty
// subsequence so the user can revise the query; it is a notice, not a crash.
func (s *Search) Run(ctx context.Context, query string) (int, error) {
	s.active = true
	s.query = query
	s.results = s.results[:0]
	s.cursor = 0
	if query == "" {
		return 0, nil
	}
	chatID := s.store.ChatID()
	msgs, err := s.fetch(ctx, chatID, query, 50)
	if err != nil {
		return 0, errs.ErrInternal.WrapMsg("search", "chat_id", chatID, "err", err)
	}
	if chatID != s.store.ChatID() {
		return 0, nil
	}
	for _, m := range msgs {
		s.results = append(s.results, m.ID)
	}
	return len(s.results), nil
}

// Close leaves search mode and drops the subsequence.
func (s *Search) Close() {
	s.active = false
	s.query = ""
	s.results = nil
	s.cursor = 0
}

// Current returns the id under the cursor.
func (s *Search) Current() (string, bool) {
	if !s.active || len(s.results) == 0 {
		return "", false
	}
	return s.results[s.cursor], true
}

// Next moves the cursor toward newer matches, wrapping around.
func (s *Search) Next() (string, bool) {
	if len(s.results) == 0 {
		return "", false
	}
	s.cursor = (s.cursor + 1) % len(s.results)
	return s.results[s.cursor], true
}

// Prev moves the cursor toward older matches, wrapping around.
func (s *Search) Prev() (string, bool) {
	if len(s.results) == 0 {
		return "", false
	}
	s.cursor = (s.cursor - 1 + len(s.results)) % len(s.results)
	return s.results[s.cursor], true
}

// Jump makes the message under the cursor loadable: if it is outside the
// loaded window, the surrounding context is fetched and merged through the
// normal identity rule. A message still missing afterwards is reported as
// not found, never a crash.
func (s *Search) Jump(ctx context.Context) (*Message, error) {
	id, ok := s.Current()
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("no search result selected")
	}
	if m, ok := s.store.Get(id); ok {
		return m, nil
	}
	chatID := s.store.ChatID()
	msgs, err := s.context(ctx, chatID, id, s.radius)
	if err != nil {
		return nil, errs.ErrInternal.WrapMsg("context fetch", "message_id", id, "err", err)
	}
	if chatID != s.store.ChatID() {
		return nil, errs.ErrNotFound.WrapMsg("chat closed during context fetch")
	}
	s.store.UpsertAll(msgs)
	if m, ok := s.store.Get(id); ok {
		return m, nil
	}
	return nil, errs.ErrNotFound.WrapMsg("message not found after context fetch", "message_id", id)
}

// Withdraw removes a deleted message from the subsequence, keeping the
// cursor on a valid entry.
func (s *Search) Withdraw(messageID string) {
	for i, id := range s.results {
		if id != messageID {
			continue
		}
		s.results = append(s.results[:i], s.results[i+1:]...)
		if s.cursor >= len(s.results) && s.cursor > 0 {
			s.cursor = len(s.results) - 1
		}
		return
	}
}
