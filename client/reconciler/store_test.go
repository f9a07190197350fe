package reconciler

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Pabblusansky/Pelegram-sub000/module/chat/model"
	"github.com/google/go-cmp/cmp"
)

func msg(id string, at int64, sender, content string) *Message {
	return &Message{
		ID:        id,
		ChatID:    "c1",
		Sender:    SenderRef{ID: sender},
		Content:   content,
		Type:      model.TypeText,
		Status:    model.StatusSent,
		CreatedAt: at,
	}
}

func newTestStore() *Store {
	return NewStore("c1", "me", time.UTC)
}

func TestSenderRefNormalizesBothShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want SenderRef
	}{
		{name: "plain id string", raw: `{"senderId":"u1"}`, want: SenderRef{ID: "u1"}},
		{name: "populated object", raw: `{"senderId":{"_id":"u1","username":"Alice"}}`, want: SenderRef{ID: "u1", Name: "Alice"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Message
			if err := json.Unmarshal([]byte(tt.raw), &m); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, m.Sender); diff != "" {
				t.Errorf("sender (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUpsertDuplicateIsNoOp(t *testing.T) {
	s := newTestStore()

	// Ack and room broadcast race: same message arrives twice.
	if !s.Upsert(msg("m1", 100, "me", "hi")) {
		t.Fatal("first arrival should insert")
	}
	if s.Upsert(msg("m1", 100, "me", "hi")) {
		t.Fatal("second arrival must merge, not insert")
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}
}

func TestUpsertKeepsTimestampOrder(t *testing.T) {
	s := newTestStore()
	s.Upsert(msg("m2", 200, "a", "second"))
	s.Upsert(msg("m1", 100, "a", "first"))
	s.Upsert(msg("m3", 300, "a", "third"))

	got := s.Messages()
	want := []string{"m1", "m2", "m3"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("order[%d] = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestUpsertIgnoresOtherChats(t *testing.T) {
	s := newTestStore()
	stray := msg("m1", 100, "a", "hi")
	stray.ChatID = "other"
	if s.Upsert(stray) || s.Len() != 0 {
		t.Fatal("message for another chat must be ignored")
	}
}

func TestStatusMonotonicAcrossArrivalOrders(t *testing.T) {
	orders := [][]model.MessageStatus{
		{model.StatusSent, model.StatusDelivered, model.StatusRead},
		{model.StatusRead, model.StatusDelivered, model.StatusSent},
		{model.StatusDelivered, model.StatusSent, model.StatusRead},
		{model.StatusRead, model.StatusSent, model.StatusDelivered},
	}
	for _, order := range orders {
		s := newTestStore()
		for _, st := range order {
			m := msg("m1", 100, "a", "hi")
			m.Status = st
			s.Upsert(m)
		}
		got, _ := s.Get("m1")
		if got.Status != model.StatusRead {
			t.Errorf("order %v: final status = %q, want read", order, got.Status)
		}
	}
}

func TestApplyStatusNeverRegresses(t *testing.T) {
	s := newTestStore()
	m := msg("m1", 100, "a", "hi")
	m.Status = model.StatusRead
	s.Upsert(m)

	if s.ApplyStatus("m1", model.StatusDelivered) {
		t.Error("stale delivered must not apply over read")
	}
	got, _ := s.Get("m1")
	if got.Status != model.StatusRead {
		t.Errorf("status = %q, want read", got.Status)
	}
}

func TestMineFromLocalCredential(t *testing.T) {
	s := newTestStore()
	// Echoed sender field could be stale; ownership is decided against the
	// local credential only.
	mine := msg("m1", 100, "me", "hi")
	theirs := msg("m2", 200, "them", "yo")
	s.Upsert(mine)
	s.Upsert(theirs)

	if !s.Mine(mine) {
		t.Error("own message not recognized")
	}
	if s.Mine(theirs) {
		t.Error("foreign message marked mine")
	}
}

func TestTransientSurvivesServerEcho(t *testing.T) {
	s := newTestStore()
	s.Upsert(msg("m1", 100, "me", "hi"))
	s.SetSelected("m1", true)

	// A re-broadcast of the same message must not wipe the selection.
	s.Upsert(msg("m1", 100, "me", "hi"))

	entries := s.Rendered()
	var found bool
	for _, e := range entries {
		if me, ok := e.(MessageEntry); ok && me.Message.ID == "m1" {
			found = me.Transient.Selected
		}
	}
	if !found {
		t.Error("selected flag lost after echo")
	}
}

func TestTwoRapidEdits(t *testing.T) {
	s := newTestStore()
	s.Upsert(msg("m1", 100, "me", "original"))

	// First edit goes out, then a second before the first confirms.
	s.BeginEdit("m1", "first edit")
	s.BeginEdit("m1", "second edit")

	// Echo of the first edit arrives: displayed content must stay the second.
	echo1 := msg("m1", 100, "me", "first edit")
	echo1.Edited = true
	s.ApplyEdit(echo1)

	if got := displayedContent(s, "m1"); got != "second edit" {
		t.Fatalf("after first echo content = %q, want %q", got, "second edit")
	}

	// Echo of the second edit resolves the pending state.
	echo2 := msg("m1", 100, "me", "second edit")
	echo2.Edited = true
	s.ApplyEdit(echo2)

	if got := displayedContent(s, "m1"); got != "second edit" {
		t.Fatalf("after second echo content = %q", got)
	}
	for _, e := range s.Rendered() {
		if me, ok := e.(MessageEntry); ok && me.Message.ID == "m1" && me.Transient.Editing {
			t.Error("editing transient not cleared after matching echo")
		}
	}
}

func displayedContent(s *Store, id string) string {
	for _, e := range s.Rendered() {
		if me, ok := e.(MessageEntry); ok && me.Message.ID == id {
			return me.Message.Content
		}
	}
	return ""
}

func TestRemoveDropsEntryAndTransient(t *testing.T) {
	s := newTestStore()
	s.Upsert(msg("m1", 100, "a", "hi"))
	s.SetSelected("m1", true)

	if !s.Remove("m1") {
		t.Fatal("remove reported not found")
	}
	if s.Len() != 0 {
		t.Fatalf("len = %d, want 0", s.Len())
	}
	if _, ok := s.Get("m1"); ok {
		t.Error("message still retrievable")
	}
	if s.Remove("m1") {
		t.Error("second remove should report not found")
	}
}

func TestDividersRecomputedPerDay(t *testing.T) {
	s := newTestStore()
	day1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC).UnixMilli()
	day1b := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC).UnixMilli()
	day2 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC).UnixMilli()

	s.Upsert(msg("m1", day1, "a", "morning"))
	s.Upsert(msg("m2", day1b, "a", "evening"))
	s.Upsert(msg("m3", day2, "a", "next day"))

	var kinds []string
	for _, e := range s.Rendered() {
		switch v := e.(type) {
		case DateDivider:
			kinds = append(kinds, "div:"+v.Day)
		case MessageEntry:
			kinds = append(kinds, v.Message.ID)
		}
	}
	want := []string{"div:2026-03-01", "m1", "m2", "div:2026-03-02", "m3"}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("rendered sequence (-want +got):\n%s", diff)
	}

	// Backfilling an older day rebuilds dividers from scratch.
	day0 := time.Date(2026, 2, 28, 23, 0, 0, 0, time.UTC).UnixMilli()
	s.Upsert(msg("m0", day0, "a", "yesterday"))
	first := s.Rendered()[0].(DateDivider)
	if first.Day != "2026-02-28" {
		t.Errorf("first divider = %s, want 2026-02-28", first.Day)
	}
}

func TestApplyReactionsReplacesWholeSet(t *testing.T) {
	s := newTestStore()
	m := msg("m1", 100, "a", "hi")
	m.Reactions = []model.Reaction{{UserID: "a", Emoji: "👍"}}
	s.Upsert(m)

	s.ApplyReactions("m1", []model.Reaction{{UserID: "b", Emoji: "❤️"}})
	got, _ := s.Get("m1")
	if len(got.Reactions) != 1 || got.Reactions[0].UserID != "b" {
		t.Errorf("reactions = %+v, want full replacement", got.Reactions)
	}

	s.ApplyReactions("m1", nil)
	got, _ = s.Get("m1")
	if len(got.Reactions) != 0 {
		t.Errorf("reactions = %+v, want empty", got.Reactions)
	}
}
