package service

import (
	"github.com/Pabblusansky/Pelegram-sub000/module/chat/model"
)

// Server -> client event names. Clients must treat every one of these as
// idempotent: the de-duplication key is the message id (or chat id for
// chat-level events).
const (
	EvReceiveMessage      = "receive_message"
	EvMessageEdited       = "message_edited"
	EvMessageDeleted      = "message_deleted"
	EvReactionUpdated     = "message_reaction_updated"
	EvMessageStatus       = "messageStatusUpdated"
	EvChatUpdated         = "chat_updated"
	EvNewChatCreated      = "new_chat_created"
	EvChatDeletedGlobally = "chat_deleted_globally"
	EvUserRemovedFromChat = "user_removed_from_chat"
	EvTyping              = "typing"
	EvUserStatusUpdate    = "user_status_update"
	EvReactionError       = "reaction_error"
	EvEditError           = "edit_error"
)

// Client -> server event names.
const (
	EvJoinChat       = "join_chat"
	EvSendMessage    = "send_message"
	EvToggleReaction = "toggle_reaction"
	EvUserActivity   = "user_activity"
	EvUserLogout     = "user_logout_attempt"
)

// ===== Payload shapes =====

type MessageDeletedPayload struct {
	MessageID   string      `json:"messageId"`
	ChatID      string      `json:"chatId"`
	UpdatedChat *model.Chat `json:"updatedChat,omitempty"`
}

type ReactionUpdatedPayload struct {
	MessageID string           `json:"messageId"`
	Reactions []model.Reaction `json:"reactions"`
}

type StatusUpdatePayload struct {
	MessageID string              `json:"messageId"`
	Status    model.MessageStatus `json:"status"`
}

type TypingPayload struct {
	ChatID   string `json:"chatId"`
	SenderID string `json:"senderId,omitempty"`
	IsTyping bool   `json:"isTyping"`
}

type ChatDeletedPayload struct {
	ChatID    string `json:"chatId"`
	DeletedBy string `json:"deletedBy,omitempty"`
}

type UserRemovedPayload struct {
	ChatID string `json:"chatId"`
	Reason string `json:"reason,omitempty"`
}

type ErrorPayload struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}
