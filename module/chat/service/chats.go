package service

import (
	"context"

	"github.com/Pabblusansky/Pelegram-sub000/module/chat/model"
	"github.com/Pabblusansky/Pelegram-sub000/tools/errs"
)

// CreateChatRequest provisions a chat. One participant = self chat, two =
// direct, more with Group = group chat.
type CreateChatRequest struct {
	Participants []string `json:"participants"`
	Group        bool     `json:"group,omitempty"`
	Name         string   `json:"name,omitempty"`
	Avatar       string   `json:"avatar,omitempty"`
}

func (s *ChatService) CreateChat(ctx context.Context, creatorID string, req CreateChatRequest) (*model.Chat, error) {
	participants := dedupe(append([]string{creatorID}, req.Participants...))
	if len(participants) == 0 {
		return nil, errs.ErrBadRequest.WrapMsg("no participants")
	}
	if req.Group && len(participants) < 2 {
		return nil, errs.ErrBadRequest.WrapMsg("group chat needs at least 2 participants")
	}

	now := s.now()
	chat := &model.Chat{
		ID:           s.newID(),
		Participants: participants,
		IsGroup:      req.Group,
		Name:         req.Name,
		Avatar:       req.Avatar,
		UnreadCounts: model.NewUnreadCounts(participants),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.Group {
		chat.AdminID = creatorID
	}
	if err := s.store.CreateChat(ctx, chat); err != nil {
		return nil, errs.ErrInternal.WrapMsg("create chat", "err", err)
	}
	for _, p := range participants {
		s.emitter.ToUser(p, EvNewChatCreated, chat)
	}
	return chat, nil
}

// DeleteChat removes the chat for everyone. Direct chats may be deleted by
// either side; group chats only by the admin.
func (s *ChatService) DeleteChat(ctx context.Context, actorID, chatID string) error {
	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return errs.ErrNotFound.WrapMsg("chat not found", "chat_id", chatID)
	}
	if !chat.HasParticipant(actorID) {
		return errs.ErrForbidden.WrapMsg("not a participant")
	}
	if chat.IsGroup && chat.AdminID != actorID {
		return errs.ErrForbidden.WrapMsg("only the admin may delete a group")
	}
	if err := s.store.DeleteChat(ctx, chatID); err != nil {
		return errs.ErrInternal.WrapMsg("delete chat", "err", err)
	}
	payload := ChatDeletedPayload{ChatID: chatID, DeletedBy: actorID}
	// Private rooms, not the chat room: participants must learn about the
	// deletion even when they never joined the room this session.
	for _, p := range chat.Participants {
		s.emitter.ToUser(p, EvChatDeletedGlobally, payload)
	}
	return nil
}

// RemoveParticipant kicks a member from a group (admin) or lets a member
// leave (self). The removed user is told on their private room.
func (s *ChatService) RemoveParticipant(ctx context.Context, actorID, chatID, userID string) (*model.Chat, error) {
	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, errs.ErrNotFound.WrapMsg("chat not found", "chat_id", chatID)
	}
	if !chat.IsGroup {
		return nil, errs.ErrBadRequest.WrapMsg("not a group chat")
	}
	if actorID != userID && chat.AdminID != actorID {
		return nil, errs.ErrForbidden.WrapMsg("only the admin may remove members")
	}
	if !chat.HasParticipant(userID) {
		return nil, errs.ErrNotFound.WrapMsg("user not in chat", "user_id", userID)
	}
	updated, err := s.store.RemoveParticipant(ctx, chatID, userID)
	if err != nil {
		return nil, errs.ErrInternal.WrapMsg("remove participant", "err", err)
	}
	reason := "removed_by_admin"
	if actorID == userID {
		reason = "left"
	}
	s.emitter.ToUser(userID, EvUserRemovedFromChat, UserRemovedPayload{ChatID: chatID, Reason: reason})
	s.emitter.ToChat(chatID, EvChatUpdated, updated)
	return updated, nil
}

// Pin points the chat's pinned-message reference at one of its messages;
// empty messageID unpins.
func (s *ChatService) Pin(ctx context.Context, actorID, chatID, messageID string) (*model.Chat, error) {
	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, errs.ErrNotFound.WrapMsg("chat not found", "chat_id", chatID)
	}
	if !chat.HasParticipant(actorID) {
		return nil, errs.ErrForbidden.WrapMsg("not a participant")
	}
	if messageID != "" {
		msg, err := s.store.GetMessage(ctx, messageID)
		if err != nil {
			return nil, errs.ErrNotFound.WrapMsg("message not found", "message_id", messageID)
		}
		if msg.ChatID != chatID {
			return nil, errs.ErrBadRequest.WrapMsg("message not in chat")
		}
	}
	updated, err := s.store.SetPinned(ctx, chatID, messageID)
	if err != nil {
		return nil, errs.ErrInternal.WrapMsg("set pinned", "err", err)
	}
	s.emitter.ToChat(chatID, EvChatUpdated, updated)
	return updated, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
