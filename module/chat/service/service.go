package service

import (
	"context"
	"time"

	"github.com/Pabblusansky/Pelegram-sub000/module/chat/model"
)

// Store is the persistence surface the mutation handlers run against. The
// Mongo implementation lives in module/chat/store; tests use a map-backed
// fake. Every read-modify-write the handlers rely on (unread increments,
// conditional status flips, last-message recompute) is pushed down here so
// the store can make it atomic.
type Store interface {
	// messages
	InsertMessage(ctx context.Context, m *model.Message) error
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	UpdateMessageContent(ctx context.Context, id, content string, editedAt int64) (*model.Message, error)
	DeleteMessages(ctx context.Context, chatID string, ids []string) (int64, error)
	// SetMessageStatusIf flips status only when it is still exactly `from`;
	// reports whether the flip happened.
	SetMessageStatusIf(ctx context.Context, id string, from, to model.MessageStatus) (bool, error)
	// MarkChatRead raises to `read` every message in the chat that is not
	// authored by reader and not already read; returns the affected ids.
	MarkChatRead(ctx context.Context, chatID, readerID string) ([]string, error)
	// ToggleReaction applies the add/replace/remove rule for one user and
	// returns the message with its full resulting reaction set.
	ToggleReaction(ctx context.Context, messageID, userID, emoji string, now int64) (*model.Message, error)
	ListMessages(ctx context.Context, chatID, beforeID string, limit int) ([]*model.Message, error)
	ContextAround(ctx context.Context, chatID, messageID string, radius int) ([]*model.Message, error)
	SearchMessages(ctx context.Context, chatID, query string, limit int) ([]*model.Message, error)

	// chats
	CreateChat(ctx context.Context, c *model.Chat) error
	GetChat(ctx context.Context, id string) (*model.Chat, error)
	ListChats(ctx context.Context, userID string) ([]*model.Chat, error)
	// ApplySend updates the chat for a freshly saved message: last-message
	// pointer, +1 unread for every participant except the sender, bumped
	// update timestamp, incremented message count. Returns the updated chat.
	ApplySend(ctx context.Context, chatID string, msg *model.Message) (*model.Chat, error)
	RecomputeLastMessage(ctx context.Context, chatID string) (*model.Chat, error)
	ResetUnread(ctx context.Context, chatID, userID string) (*model.Chat, error)
	SetPinned(ctx context.Context, chatID, messageID string) (*model.Chat, error)
	// ClearPinnedIf unpins only when the pinned pointer still equals messageID.
	ClearPinnedIf(ctx context.Context, chatID, messageID string) (*model.Chat, error)
	DeleteChat(ctx context.Context, chatID string) error
	RemoveParticipant(ctx context.Context, chatID, userID string) (*model.Chat, error)
}

// Emitter is the fan-out surface. The gateway hub implements it; the NATS
// bridge extends it across nodes. Emission must happen only after the state
// it announces is durably committed.
type Emitter interface {
	// ToChat targets every session joined to the chat room.
	ToChat(chatID, event string, payload any)
	// ToChatExcept targets the chat room minus one user (typing relay).
	ToChatExcept(chatID, exceptUserID, event string, payload any)
	// ToUser targets the private per-user room, reaching all their devices.
	ToUser(userID, event string, payload any)
}

// Scheduler abstracts delayed execution so the sent->delivered flip is
// deterministic under test.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) { time.AfterFunc(d, f) }

// Options configures a ChatService.
type Options struct {
	DeliveredAfter time.Duration    // delay before sent -> delivered
	Clock          func() time.Time // nil => time.Now
	Scheduler      Scheduler        // nil => time.AfterFunc
	NewID          func() string    // nil => snowflake
}

func (o *Options) norm() {
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Scheduler == nil {
		o.Scheduler = realScheduler{}
	}
	if o.DeliveredAfter <= 0 {
		o.DeliveredAfter = time.Second
	}
}

// ChatService owns every authoritative chat/message state transition and the
// fan-out each one triggers.
type ChatService struct {
	store   Store
	emitter Emitter
	opts    Options
}

func New(store Store, emitter Emitter, opts Options) *ChatService {
	opts.norm()
	return &ChatService{store: store, emitter: emitter, opts: opts}
}

func (s *ChatService) now() int64 { return s.opts.Clock().UnixMilli() }

// Store exposes the read-side surface for the HTTP handlers.
func (s *ChatService) Store() Store { return s.store }
