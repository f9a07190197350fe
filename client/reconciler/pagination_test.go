package reconciler

import (
	"context"
	"testing"
)

func TestLoadOlderPrependsAndAnchors(t *testing.T) {
	s := newTestStore()
	s.Upsert(msg("m3", 300, "a", "newest loaded"))

	fetch := func(_ context.Context, chatID, beforeID string, limit int) ([]*Message, bool, error) {
		if chatID != "c1" || beforeID != "m3" {
			t.Fatalf("fetch(%s, %s)", chatID, beforeID)
		}
		return []*Message{msg("m1", 100, "a", "one"), msg("m2", 200, "a", "two")}, true, nil
	}
	p := NewPager(s, fetch, 2)

	res, err := p.LoadOlder(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Added != 2 {
		t.Errorf("added = %d, want 2", res.Added)
	}
	// The previously-oldest message is the scroll anchor.
	if res.AnchorID != "m3" {
		t.Errorf("anchor = %q, want m3", res.AnchorID)
	}
	if got := s.OldestID(); got != "m1" {
		t.Errorf("oldest after prepend = %q, want m1", got)
	}
}

func TestLoadOlderInFlightGuard(t *testing.T) {
	s := newTestStore()
	s.Upsert(msg("m2", 200, "a", "hi"))

	calls := 0
	release := make(chan struct{})
	started := make(chan struct{})
	fetch := func(context.Context, string, string, int) ([]*Message, bool, error) {
		calls++
		close(started)
		<-release
		return []*Message{msg("m1", 100, "a", "old")}, true, nil
	}
	p := NewPager(s, fetch, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := p.LoadOlder(context.Background()); err != nil {
			t.Error(err)
		}
	}()
	<-started

	// Second trigger while the first is in flight: suppressed, not queued.
	res, err := p.LoadOlder(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Added != 0 {
		t.Errorf("suppressed call added = %d, want 0", res.Added)
	}
	close(release)
	<-done

	if calls != 1 {
		t.Errorf("fetch calls = %d, want 1", calls)
	}
}

func TestLoadOlderTerminalState(t *testing.T) {
	s := newTestStore()
	s.Upsert(msg("m1", 100, "a", "oldest"))

	calls := 0
	fetch := func(context.Context, string, string, int) ([]*Message, bool, error) {
		calls++
		return nil, false, nil
	}
	p := NewPager(s, fetch, 10)
	ctx := context.Background()

	res, err := p.LoadOlder(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Terminal {
		t.Fatal("empty page must flip the terminal flag")
	}

	// Further calls are no-ops until the chat is reopened (a fresh store).
	for i := 0; i < 3; i++ {
		if _, err := p.LoadOlder(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 1 {
		t.Errorf("fetch calls = %d, want exactly 1", calls)
	}
}

func TestLoadOlderShortPageIsTerminal(t *testing.T) {
	s := newTestStore()
	s.Upsert(msg("m2", 200, "a", "hi"))

	fetch := func(context.Context, string, string, int) ([]*Message, bool, error) {
		return []*Message{msg("m1", 100, "a", "one")}, false, nil
	}
	p := NewPager(s, fetch, 50)

	res, err := p.LoadOlder(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Added != 1 || !res.Terminal {
		t.Errorf("res = %+v, want 1 added and terminal", res)
	}
}

func TestLoadOlderDiscardsForeignChatRows(t *testing.T) {
	s := newTestStore()
	s.Upsert(msg("m2", 200, "a", "hi"))

	fetch := func(context.Context, string, string, int) ([]*Message, bool, error) {
		stray := msg("x1", 50, "a", "stray")
		stray.ChatID = "other"
		return []*Message{stray, msg("m1", 100, "a", "one")}, true, nil
	}
	p := NewPager(s, fetch, 2)

	res, err := p.LoadOlder(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Added != 1 {
		t.Errorf("added = %d, want only the matching-chat row", res.Added)
	}
	if _, ok := s.Get("x1"); ok {
		t.Error("stray row merged into the store")
	}
}
