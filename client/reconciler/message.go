package reconciler

import (
	"encoding/json"

	"github.com/Pabblusansky/Pelegram-sub000/module/chat/model"
)

// SenderRef normalizes the sender field at the ingest boundary. Wire payloads
// carry either a plain id string or a populated object with an `_id`; nothing
// past decoding ever branches on the shape again.
type SenderRef struct {
	ID   string
	Name string
}

func (r *SenderRef) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		r.ID = s
		return nil
	}
	var obj struct {
		ID   string `json:"_id"`
		Name string `json:"username"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	r.ID = obj.ID
	r.Name = obj.Name
	return nil
}

func (r SenderRef) MarshalJSON() ([]byte, error) { return json.Marshal(r.ID) }

// Message is the client-side projection of a server message. Server-confirmed
// fields only; transient UI state lives in the store's side table.
type Message struct {
	ID            string                `json:"_id"`
	ChatID        string                `json:"chatId"`
	Sender        SenderRef             `json:"senderId"`
	SenderName    string                `json:"senderName,omitempty"`
	Content       string                `json:"content"`
	Type          model.MessageType     `json:"type"`
	Category      model.MessageCategory `json:"category,omitempty"`
	Status        model.MessageStatus   `json:"status"`
	Edited        bool                  `json:"edited,omitempty"`
	EditedAt      int64                 `json:"editedAt,omitempty"`
	ForwardedFrom string                `json:"forwardedFrom,omitempty"`
	Reactions     []model.Reaction      `json:"reactions,omitempty"`
	ReplyTo       *model.ReplySnapshot  `json:"replyTo,omitempty"`
	File          *model.FileMeta       `json:"file,omitempty"`
	CreatedAt     int64                 `json:"createdAt"`
}

// merge folds src into m keyed by identity. Status only ever rises; a stale
// `sent` racing a fresh `delivered` keeps the higher rank no matter the
// arrival order.
func (m *Message) merge(src *Message) {
	m.Status = model.MaxStatus(m.Status, src.Status)
	m.Content = src.Content
	m.Edited = src.Edited
	m.EditedAt = src.EditedAt
	m.Reactions = src.Reactions
	if src.SenderName != "" {
		m.SenderName = src.SenderName
	}
	if src.ReplyTo != nil {
		m.ReplyTo = src.ReplyTo
	}
	if src.File != nil {
		m.File = src.File
	}
}

// before orders messages by timestamp with id as the tie break, so the store
// ordering is total and stable.
func (m *Message) before(other *Message) bool {
	if m.CreatedAt != other.CreatedAt {
		return m.CreatedAt < other.CreatedAt
	}
	return m.ID < other.ID
}
