package model

// UnreadCount is one participant's unread counter. The sender of a message
// never has their own counter incremented by it.
type UnreadCount struct {
	UserID string `bson:"user_id" json:"userId"`
	Count  int64  `bson:"count" json:"count"`
}

// Chat is the authoritative chat document.
//
// Participant cardinality decides the kind: 1 = self ("saved messages"),
// 2 = direct, >2 with IsGroup = group.
type Chat struct {
	ID           string        `bson:"_id" json:"_id"`
	Participants []string      `bson:"participants" json:"participants"`
	IsGroup      bool          `bson:"is_group" json:"isGroup"`
	Name         string        `bson:"name,omitempty" json:"name,omitempty"`     // group name
	Avatar       string        `bson:"avatar,omitempty" json:"avatar,omitempty"` // group avatar path
	AdminID      string        `bson:"admin_id,omitempty" json:"adminId,omitempty"`
	LastMessage  *Message      `bson:"last_message,omitempty" json:"lastMessage,omitempty"` // denormalized for list rendering
	PinnedMsgID  string        `bson:"pinned_message_id,omitempty" json:"pinnedMessageId,omitempty"`
	UnreadCounts []UnreadCount `bson:"unread_counts" json:"unreadCounts"`
	MessageCount int64         `bson:"message_count" json:"-"` // total ever sent; 1 on the chat's first message
	CreatedAt    int64         `bson:"created_at" json:"createdAt"`
	UpdatedAt    int64         `bson:"updated_at" json:"updatedAt"` // drives chat-list ordering
}

func (*Chat) TableName() string { return ChatTableName }

func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// UnreadFor returns the unread counter for one participant.
func (c *Chat) UnreadFor(userID string) int64 {
	for _, u := range c.UnreadCounts {
		if u.UserID == userID {
			return u.Count
		}
	}
	return 0
}

// NewUnreadCounts builds a zeroed counter list, one per participant.
func NewUnreadCounts(participants []string) []UnreadCount {
	out := make([]UnreadCount, 0, len(participants))
	for _, p := range participants {
		out = append(out, UnreadCount{UserID: p})
	}
	return out
}

// PresenceRecord is one user's presence state as broadcast to clients.
// The payload is always the full snapshot (id -> record), not a delta.
type PresenceRecord struct {
	LastActive int64 `json:"lastActive"` // unix ms
	Online     bool  `json:"online"`
}
