package reconciler

import (
	"context"

	"github.com/Pabblusansky/Pelegram-sub000/tools/errs"
)

// PageFetch loads up to limit messages older than beforeID, ascending.
// hasMore=false means history is exhausted at this anchor.
type PageFetch func(ctx context.Context, chatID, beforeID string, limit int) (msgs []*Message, hasMore bool, err error)

// PageResult reports what a completed load-older did. AnchorID is the id of
// the message that was oldest before the prepend; the view keeps that message
// on-screen so the prepend does not yank the scroll position.
type PageResult struct {
	Added    int
	AnchorID string
	Terminal bool
}

// Pager drives backward pagination for one store. A second load-older while
// one is in flight is suppressed, not queued; hitting the oldest message is
// terminal until the chat is reopened.
type Pager struct {
	store    *Store
	fetch    PageFetch
	limit    int
	inFlight bool
}

func NewPager(store *Store, fetch PageFetch, limit int) *Pager {
	if limit <= 0 {
		limit = 50
	}
	return &Pager{store: store, fetch: fetch, limit: limit}
}

func (p *Pager) InFlight() bool { return p.inFlight }

// LoadOlder fetches the page before the current oldest message and merges it.
// Suppressed and terminal calls return a zero no-op result; only transport
// failures surface as errors.
func (p *Pager) LoadOlder(ctx context.Context) (PageResult, error) {
	if p.inFlight || p.store.NoMoreOlder() {
		return PageResult{Terminal: p.store.NoMoreOlder()}, nil
	}
	anchor := p.store.OldestID()
	chatID := p.store.ChatID()
	p.inFlight = true
	defer func() { p.inFlight = false }()

	msgs, hasMore, err := p.fetch(ctx, chatID, anchor, p.limit)
	if err != nil {
		return PageResult{AnchorID: anchor}, errs.ErrInternal.WrapMsg("load older", "chat_id", chatID, "err", err)
	}
	// A slow response for a chat the user already left must be discarded;
	// the store's chat id is the resolution-time check.
	if chatID != p.store.ChatID() {
		return PageResult{}, nil
	}
	added := 0
	for _, m := range msgs {
		if m.ChatID != chatID {
			continue
		}
		if p.store.Upsert(m) {
			added++
		}
	}
	if len(msgs) == 0 || !hasMore {
		p.store.SetNoMoreOlder()
	}
	return PageResult{Added: added, AnchorID: anchor, Terminal: p.store.NoMoreOlder()}, nil
}
