package model

import "unicode/utf8"

// ===== Collections =====

const (
	MsgTableName  = "message"
	ChatTableName = "chat"
)

// ===== Enums =====

// MessageType discriminates the content payload.
type MessageType string

const (
	TypeText  MessageType = "text"
	TypeImage MessageType = "image"
	TypeVideo MessageType = "video"
	TypeAudio MessageType = "audio"
	TypeFile  MessageType = "file"
	TypeEvent MessageType = "event"
)

// MessageCategory separates user content from synthetic system entries
// ("X joined the group"). System entries never count toward unread.
type MessageCategory string

const (
	CategoryUserContent MessageCategory = "user_content"
	CategorySystemEvent MessageCategory = "system_event"
)

// MessageStatus is the delivery lifecycle. It is monotonically non-decreasing:
// merges keep the higher-ranked value, a stale `sent` can never clobber a
// fresh `delivered` or `read`.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// StatusRank orders statuses for the monotonic merge. Unknown values rank
// below `sent` so garbage from the wire can never advance a message.
func StatusRank(s MessageStatus) int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return 0
	}
}

// MaxStatus returns the higher-ranked of two statuses.
func MaxStatus(a, b MessageStatus) MessageStatus {
	if StatusRank(b) > StatusRank(a) {
		return b
	}
	return a
}

// ===== Storage structs =====

// Reaction is one user's reaction on a message. At most one per user;
// last write wins.
type Reaction struct {
	UserID    string `bson:"user_id" json:"userId"`
	Emoji     string `bson:"emoji" json:"emoji"`
	UpdatedAt int64  `bson:"updated_at" json:"updatedAt"` // unix ms
}

// ReplySnapshot is a denormalized copy of the quoted message, NOT a live
// reference: it survives deletion of the original.
type ReplySnapshot struct {
	MessageID  string `bson:"message_id" json:"messageId"`
	SenderName string `bson:"sender_name" json:"senderName"`
	Content    string `bson:"content" json:"content"` // truncated at snapshot time
}

// FileMeta describes an uploaded attachment. The upload pipeline itself is
// owned by an external service; only the pointer lives here.
type FileMeta struct {
	Path         string `bson:"path" json:"path"`
	Mime         string `bson:"mime" json:"mime"`
	Size         int64  `bson:"size" json:"size"`
	OriginalName string `bson:"original_name" json:"originalName"`
}

// Message is the authoritative message document. Identity never changes;
// every update is a merge keyed by ID.
type Message struct {
	ID            string          `bson:"_id" json:"_id"`
	ChatID        string          `bson:"chat_id" json:"chatId"`
	SenderID      string          `bson:"sender_id" json:"senderId"` // empty for system events
	SenderName    string          `bson:"sender_name" json:"senderName"`
	Content       string          `bson:"content" json:"content"`
	Type          MessageType     `bson:"type" json:"type"`
	Category      MessageCategory `bson:"category" json:"category"`
	Status        MessageStatus   `bson:"status" json:"status"`
	Edited        bool            `bson:"edited" json:"edited"`
	EditedAt      int64           `bson:"edited_at,omitempty" json:"editedAt,omitempty"`
	ForwardedFrom string          `bson:"forwarded_from,omitempty" json:"forwardedFrom,omitempty"` // original sender display name
	Reactions     []Reaction      `bson:"reactions" json:"reactions"`
	ReplyTo       *ReplySnapshot  `bson:"reply_to,omitempty" json:"replyTo,omitempty"`
	File          *FileMeta       `bson:"file,omitempty" json:"file,omitempty"`
	CreatedAt     int64           `bson:"created_at" json:"createdAt"` // unix ms
}

func (*Message) TableName() string { return MsgTableName }

// ReactionOf returns the actor's current reaction, if any.
func (m *Message) ReactionOf(userID string) (Reaction, bool) {
	for _, r := range m.Reactions {
		if r.UserID == userID {
			return r, true
		}
	}
	return Reaction{}, false
}

// ReplySnapshotMaxLen caps the quoted content copied into a snapshot.
const ReplySnapshotMaxLen = 100

// SnapshotOf builds the denormalized reply-to snapshot for this message.
func (m *Message) SnapshotOf() *ReplySnapshot {
	content := m.Content
	if len(content) > ReplySnapshotMaxLen {
		// Cut on a rune boundary; a byte-offset cut would persist and fan
		// out an invalid-UTF-8 tail.
		cut := ReplySnapshotMaxLen
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut]
	}
	return &ReplySnapshot{
		MessageID:  m.ID,
		SenderName: m.SenderName,
		Content:    content,
	}
}
