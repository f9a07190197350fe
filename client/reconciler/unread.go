package reconciler

import (
	"time"

	"github.com/Pabblusansky/Pelegram-sub000/client/timing"
	"github.com/Pabblusansky/Pelegram-sub000/module/chat/model"
)

const (
	// AtBottomThreshold tolerates sub-pixel rendering: "at bottom" is a band,
	// not exact zero.
	AtBottomThreshold = 40.0
	markReadDebounce  = 500 * time.Millisecond
)

// Unread tracks the new-messages indicator for one open chat and decides when
// a mark-as-read call actually goes out.
type Unread struct {
	store     *Store
	scheduler timing.Scheduler
	markRead  func(chatID string)

	atBottom bool
	heldBack []string
	pending  timing.Timer
}

func NewUnread(store *Store, scheduler timing.Scheduler, markRead func(chatID string)) *Unread {
	if scheduler == nil {
		scheduler = timing.RealScheduler()
	}
	return &Unread{store: store, scheduler: scheduler, markRead: markRead, atBottom: true}
}

// OnScroll feeds the viewport offset from the bottom. Crossing into the
// bottom band clears the indicator and schedules one debounced mark-as-read;
// rapid scroll events coalesce into a single call.
func (u *Unread) OnScroll(offsetFromBottom float64) {
	at := offsetFromBottom <= AtBottomThreshold
	if at == u.atBottom {
		return
	}
	u.atBottom = at
	if at {
		u.heldBack = u.heldBack[:0]
		u.scheduleMarkRead()
	}
}

// OnIncoming is called after a non-own message was merged. While scrolled up
// it accumulates into the indicator; at the bottom it feeds the debounced
// mark-as-read instead.
func (u *Unread) OnIncoming(m *Message) {
	if u.store.Mine(m) || m.Category == model.CategorySystemEvent {
		return
	}
	if !u.atBottom {
		u.heldBack = append(u.heldBack, m.ID)
		return
	}
	u.scheduleMarkRead()
}

// Opened runs after the initial history load. A chat opened at the bottom
// with unread history gets its mark-as-read without any scroll event; the
// debounce still suppresses the call when nothing would flip.
func (u *Unread) Opened() {
	if u.atBottom {
		u.scheduleMarkRead()
	}
}

// Count is the indicator value while scrolled up.
func (u *Unread) Count() int { return len(u.heldBack) }

func (u *Unread) AtBottom() bool { return u.atBottom }

func (u *Unread) scheduleMarkRead() {
	if u.pending != nil {
		u.pending.Stop()
	}
	u.pending = u.scheduler.AfterFunc(markReadDebounce, func() {
		u.pending = nil
		if !u.hasQualifying() {
			// Nothing would change server side; suppress the call.
			return
		}
		u.markRead(u.store.ChatID())
	})
}

// hasQualifying reports whether any loaded message would actually flip to
// read: not authored locally and not already read.
func (u *Unread) hasQualifying() bool {
	for _, m := range u.store.Messages() {
		if u.store.Mine(m) || m.Category == model.CategorySystemEvent {
			continue
		}
		if m.Status != model.StatusRead {
			return true
		}
	}
	return false
}

// Stop cancels any armed debounce timer.
func (u *Unread) Stop() {
	if u.pending != nil {
		u.pending.Stop()
		u.pending = nil
	}
}

// TotalUnread sums the local user's unread counter across every chat for the
// cross-chat badge. Recomputed whenever any chat-list-affecting event lands.
func TotalUnread(chats []*model.Chat, selfUserID string) int64 {
	var total int64
	for _, c := range chats {
		total += c.UnreadFor(selfUserID)
	}
	return total
}
