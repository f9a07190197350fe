package service

import (
	"context"

	"github.com/Pabblusansky/Pelegram-sub000/module/chat/model"
	"github.com/Pabblusansky/Pelegram-sub000/tools/errs"
	"github.com/Pabblusansky/Pelegram-sub000/tools/ids"
)

// Sender identifies the authenticated actor of a mutation. The display name
// is snapshotted onto messages at send time.
type Sender struct {
	ID   string
	Name string
}

// SendRequest is the payload of a send_message call.
type SendRequest struct {
	ChatID  string          `json:"chatId"`
	Content string          `json:"content"`
	Type    string          `json:"type,omitempty"`    // defaults to text
	ReplyTo string          `json:"replyTo,omitempty"` // quoted message id
	File    *model.FileMeta `json:"file,omitempty"`
}

// Send validates, persists and fans out a new message, then acknowledges the
// caller with the saved document. Room trust is not enough: the sender must
// be a participant of the chat regardless of which rooms their session
// joined. After DeliveredAfter the status flips sent -> delivered, but only
// if it is still exactly `sent`, so a fast read receipt is never clobbered
// backward.
func (s *ChatService) Send(ctx context.Context, from Sender, req SendRequest) (*model.Message, error) {
	chat, err := s.store.GetChat(ctx, req.ChatID)
	if err != nil {
		return nil, errs.ErrNotFound.WrapMsg("chat not found", "chat_id", req.ChatID)
	}
	if !chat.HasParticipant(from.ID) {
		return nil, errs.ErrForbidden.WrapMsg("sender is not a participant", "chat_id", req.ChatID)
	}

	msgType := model.MessageType(req.Type)
	switch msgType {
	case model.TypeText, model.TypeImage, model.TypeVideo, model.TypeAudio, model.TypeFile:
	case "":
		msgType = model.TypeText
	default:
		return nil, errs.ErrBadRequest.WrapMsg("unknown message type", "type", req.Type)
	}
	if req.Content == "" && req.File == nil {
		return nil, errs.ErrBadRequest.WrapMsg("empty message")
	}

	msg := &model.Message{
		ID:         s.newID(),
		ChatID:     chat.ID,
		SenderID:   from.ID,
		SenderName: from.Name,
		Content:    req.Content,
		Type:       msgType,
		Category:   model.CategoryUserContent,
		Status:     model.StatusSent,
		Reactions:  []model.Reaction{},
		File:       req.File,
		CreatedAt:  s.now(),
	}
	if req.ReplyTo != "" {
		// Denormalized snapshot; a missing original is not an error, the
		// quote simply has no snapshot.
		if orig, err := s.store.GetMessage(ctx, req.ReplyTo); err == nil {
			msg.ReplyTo = orig.SnapshotOf()
		}
	}

	if err := s.store.InsertMessage(ctx, msg); err != nil {
		return nil, errs.ErrInternal.WrapMsg("insert message", "err", err)
	}
	updated, err := s.store.ApplySend(ctx, chat.ID, msg)
	if err != nil {
		return nil, errs.ErrInternal.WrapMsg("apply send", "err", err)
	}

	s.emitter.ToChat(chat.ID, EvReceiveMessage, msg)
	s.emitter.ToChat(chat.ID, EvChatUpdated, updated)
	if updated.MessageCount == 1 {
		// First-ever message: the chat may have been provisioned but never
		// surfaced in a participant's list. Reach them on their private rooms.
		for _, p := range updated.Participants {
			s.emitter.ToUser(p, EvNewChatCreated, updated)
		}
	}

	s.scheduleDelivered(msg.ID)
	return msg, nil
}

func (s *ChatService) scheduleDelivered(messageID string) {
	s.opts.Scheduler.AfterFunc(s.opts.DeliveredAfter, func() {
		ctx := context.Background()
		flipped, err := s.store.SetMessageStatusIf(ctx, messageID, model.StatusSent, model.StatusDelivered)
		if err != nil || !flipped {
			return
		}
		msg, err := s.store.GetMessage(ctx, messageID)
		if err != nil {
			return
		}
		s.emitter.ToChat(msg.ChatID, EvMessageStatus, StatusUpdatePayload{
			MessageID: messageID,
			Status:    model.StatusDelivered,
		})
	})
}

// Edit replaces the content of the actor's own message and broadcasts the
// full updated document.
func (s *ChatService) Edit(ctx context.Context, actorID, messageID, content string) (*model.Message, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, errs.ErrNotFound.WrapMsg("message not found", "message_id", messageID)
	}
	if msg.SenderID != actorID {
		return nil, errs.ErrForbidden.WrapMsg("only the sender may edit")
	}
	if content == "" {
		return nil, errs.ErrBadRequest.WrapMsg("empty content")
	}
	updated, err := s.store.UpdateMessageContent(ctx, messageID, content, s.now())
	if err != nil {
		return nil, errs.ErrInternal.WrapMsg("update content", "err", err)
	}
	s.emitter.ToChat(updated.ChatID, EvMessageEdited, updated)
	return updated, nil
}

// Delete removes the actor's own messages and re-points the chat's
// last-message if one of them was the latest. One deletion event per message
// carries enough for clients to patch their list without a reload.
func (s *ChatService) Delete(ctx context.Context, actorID, chatID string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return errs.ErrBadRequest.WrapMsg("no message ids")
	}
	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return errs.ErrNotFound.WrapMsg("chat not found", "chat_id", chatID)
	}
	for _, id := range messageIDs {
		msg, err := s.store.GetMessage(ctx, id)
		if err != nil {
			return errs.ErrNotFound.WrapMsg("message not found", "message_id", id)
		}
		if msg.ChatID != chatID {
			return errs.ErrBadRequest.WrapMsg("message not in chat", "message_id", id)
		}
		if msg.SenderID != actorID && chat.AdminID != actorID {
			return errs.ErrForbidden.WrapMsg("only the sender or admin may delete")
		}
	}

	if _, err := s.store.DeleteMessages(ctx, chatID, messageIDs); err != nil {
		return errs.ErrInternal.WrapMsg("delete messages", "err", err)
	}

	updated, err := s.store.RecomputeLastMessage(ctx, chatID)
	if err != nil {
		return errs.ErrInternal.WrapMsg("recompute last message", "err", err)
	}
	for _, id := range messageIDs {
		// Pinned pointer goes with the message; conditional so an unrelated
		// pin set concurrently survives.
		if updated.PinnedMsgID == id {
			if c, err := s.store.ClearPinnedIf(ctx, chatID, id); err == nil {
				updated = c
			}
		}
	}
	for _, id := range messageIDs {
		s.emitter.ToChat(chatID, EvMessageDeleted, MessageDeletedPayload{
			MessageID:   id,
			ChatID:      chatID,
			UpdatedChat: updated,
		})
	}
	s.emitter.ToChat(chatID, EvChatUpdated, updated)
	return nil
}

// ToggleReaction applies one user's reaction: absent -> add, same -> remove,
// different -> replace. The broadcast carries the full resulting set, not a
// delta, so client merges cannot be order dependent.
func (s *ChatService) ToggleReaction(ctx context.Context, actorID, messageID, emoji string) (*model.Message, error) {
	if emoji == "" {
		return nil, errs.ErrBadRequest.WrapMsg("empty reaction")
	}
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, errs.ErrNotFound.WrapMsg("message not found", "message_id", messageID)
	}
	chat, err := s.store.GetChat(ctx, msg.ChatID)
	if err != nil {
		return nil, errs.ErrNotFound.WrapMsg("chat not found", "chat_id", msg.ChatID)
	}
	if !chat.HasParticipant(actorID) {
		return nil, errs.ErrForbidden.WrapMsg("not a participant")
	}
	updated, err := s.store.ToggleReaction(ctx, messageID, actorID, emoji, s.now())
	if err != nil {
		return nil, errs.ErrInternal.WrapMsg("toggle reaction", "err", err)
	}
	s.emitter.ToChat(updated.ChatID, EvReactionUpdated, ReactionUpdatedPayload{
		MessageID: updated.ID,
		Reactions: updated.Reactions,
	})
	return updated, nil
}

// Forward creates copies of the source messages in the target chat, carrying
// forwarded-from provenance, and fans out exactly like Send.
func (s *ChatService) Forward(ctx context.Context, from Sender, targetChatID string, messageIDs ...string) ([]*model.Message, error) {
	if len(messageIDs) == 0 {
		return nil, errs.ErrBadRequest.WrapMsg("no message ids")
	}
	target, err := s.store.GetChat(ctx, targetChatID)
	if err != nil {
		return nil, errs.ErrNotFound.WrapMsg("target chat not found", "chat_id", targetChatID)
	}
	if !target.HasParticipant(from.ID) {
		return nil, errs.ErrForbidden.WrapMsg("sender is not a participant", "chat_id", targetChatID)
	}

	out := make([]*model.Message, 0, len(messageIDs))
	for _, id := range messageIDs {
		src, err := s.store.GetMessage(ctx, id)
		if err != nil {
			return nil, errs.ErrNotFound.WrapMsg("message not found", "message_id", id)
		}
		srcChat, err := s.store.GetChat(ctx, src.ChatID)
		if err != nil || !srcChat.HasParticipant(from.ID) {
			return nil, errs.ErrForbidden.WrapMsg("no access to source message", "message_id", id)
		}
		fwd := &model.Message{
			ID:            s.newID(),
			ChatID:        target.ID,
			SenderID:      from.ID,
			SenderName:    from.Name,
			Content:       src.Content,
			Type:          src.Type,
			Category:      model.CategoryUserContent,
			Status:        model.StatusSent,
			ForwardedFrom: src.SenderName,
			Reactions:     []model.Reaction{},
			File:          src.File,
			CreatedAt:     s.now(),
		}
		if err := s.store.InsertMessage(ctx, fwd); err != nil {
			return nil, errs.ErrInternal.WrapMsg("insert forwarded message", "err", err)
		}
		updated, err := s.store.ApplySend(ctx, target.ID, fwd)
		if err != nil {
			return nil, errs.ErrInternal.WrapMsg("apply send", "err", err)
		}
		s.emitter.ToChat(target.ID, EvReceiveMessage, fwd)
		s.emitter.ToChat(target.ID, EvChatUpdated, updated)
		if updated.MessageCount == 1 {
			for _, p := range updated.Participants {
				s.emitter.ToUser(p, EvNewChatCreated, updated)
			}
		}
		s.scheduleDelivered(fwd.ID)
		out = append(out, fwd)
	}
	return out, nil
}

// MarkRead raises every qualifying message (not authored by reader, not
// already read) to `read`, resets the reader's unread counter, and emits one
// status event per affected message plus the updated chat snapshot.
func (s *ChatService) MarkRead(ctx context.Context, readerID, chatID string) (*model.Chat, error) {
	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, errs.ErrNotFound.WrapMsg("chat not found", "chat_id", chatID)
	}
	if !chat.HasParticipant(readerID) {
		return nil, errs.ErrForbidden.WrapMsg("not a participant")
	}
	affected, err := s.store.MarkChatRead(ctx, chatID, readerID)
	if err != nil {
		return nil, errs.ErrInternal.WrapMsg("mark read", "err", err)
	}
	updated, err := s.store.ResetUnread(ctx, chatID, readerID)
	if err != nil {
		return nil, errs.ErrInternal.WrapMsg("reset unread", "err", err)
	}
	for _, id := range affected {
		s.emitter.ToChat(chatID, EvMessageStatus, StatusUpdatePayload{
			MessageID: id,
			Status:    model.StatusRead,
		})
	}
	s.emitter.ToChat(chatID, EvChatUpdated, updated)
	return updated, nil
}

// Typing is ephemeral: relayed as-is to the chat room excluding the sender,
// never persisted. Debouncing is a client concern.
func (s *ChatService) Typing(ctx context.Context, senderID, chatID string, isTyping bool) error {
	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return errs.ErrNotFound.WrapMsg("chat not found", "chat_id", chatID)
	}
	if !chat.HasParticipant(senderID) {
		return errs.ErrForbidden.WrapMsg("not a participant")
	}
	s.emitter.ToChatExcept(chatID, senderID, EvTyping, TypingPayload{
		ChatID:   chatID,
		SenderID: senderID,
		IsTyping: isTyping,
	})
	return nil
}

func (s *ChatService) newID() string {
	if s.opts.NewID != nil {
		return s.opts.NewID()
	}
	return ids.GenerateString()
}
