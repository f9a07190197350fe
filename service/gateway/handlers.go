package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Pabblusansky/Pelegram-sub000/logger"
	chatsvc "github.com/Pabblusansky/Pelegram-sub000/module/chat/service"
	"github.com/Pabblusansky/Pelegram-sub000/tools/decode"
	"github.com/Pabblusansky/Pelegram-sub000/tools/errs"
)

const handlerTimeout = 10 * time.Second

func (s *Server) registerHandlers() {
	s.disp.Register(chatsvc.EvJoinChat, s.handleJoinChat)
	s.disp.Register(chatsvc.EvSendMessage, s.handleSendMessage)
	s.disp.Register(chatsvc.EvTyping, s.handleTyping)
	s.disp.Register(chatsvc.EvToggleReaction, s.handleToggleReaction)
	s.disp.Register(chatsvc.EvUserActivity, s.handleUserActivity)
	s.disp.Register(chatsvc.EvUserLogout, s.handleUserLogout)
}

type joinChatPayload struct {
	ChatID string `json:"chatId"`
}

// handleJoinChat is idempotent; the session re-issues it for every
// participant chat after a reconnect.
func (s *Server) handleJoinChat(c *Client, data json.RawMessage, ack string) error {
	p, err := decode.JSON[joinChatPayload](data)
	if err != nil || p.ChatID == "" {
		s.replyError(c, EvError, ack, errs.ErrBadRequest)
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	chat, err := s.svc.Store().GetChat(ctx, p.ChatID)
	if err != nil {
		s.replyError(c, EvError, ack, errs.ErrNotFound)
		return err
	}
	if !chat.HasParticipant(c.UserID) {
		s.replyError(c, EvError, ack, errs.ErrForbidden)
		return nil
	}
	s.rooms.Join(ChatRoom(p.ChatID), c)
	return nil
}

// handleSendMessage acknowledges the caller directly with the saved message;
// the room broadcast carries the same document, and the client treats the
// second arrival as a no-op merge.
func (s *Server) handleSendMessage(c *Client, data json.RawMessage, ack string) error {
	req, err := decode.JSON[chatsvc.SendRequest](data)
	if err != nil {
		s.replyError(c, EvError, ack, errs.ErrBadRequest)
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	msg, err := s.svc.Send(ctx, chatsvc.Sender{ID: c.UserID, Name: c.Name}, *req)
	if err != nil {
		s.replyError(c, EvError, ack, err)
		return err
	}
	s.reply(c, ack, msg)
	return nil
}

func (s *Server) handleTyping(c *Client, data json.RawMessage, _ string) error {
	p, err := decode.JSON[chatsvc.TypingPayload](data)
	if err != nil || p.ChatID == "" {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	// Sender identity comes from the session, never from the payload.
	return s.svc.Typing(ctx, c.UserID, p.ChatID, p.IsTyping)
}

type toggleReactionPayload struct {
	MessageID    string `json:"messageId"`
	ReactionType string `json:"reactionType"`
}

// handleToggleReaction is fire-and-forget; failures surface on the dedicated
// reaction_error event since the caller has no ack to wait on.
func (s *Server) handleToggleReaction(c *Client, data json.RawMessage, _ string) error {
	p, err := decode.JSON[toggleReactionPayload](data)
	if err != nil || p.MessageID == "" {
		s.replyError(c, chatsvc.EvReactionError, "", errs.ErrBadRequest)
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	if _, err := s.svc.ToggleReaction(ctx, c.UserID, p.MessageID, p.ReactionType); err != nil {
		s.replyError(c, chatsvc.EvReactionError, "", err)
		return err
	}
	return nil
}

func (s *Server) handleUserActivity(c *Client, _ json.RawMessage, _ string) error {
	s.presence.RecordActivity(c.UserID)
	return nil
}

type logoutPayload struct {
	UserID string `json:"userId"`
}

func (s *Server) handleUserLogout(c *Client, data json.RawMessage, _ string) error {
	p, err := decode.JSON[logoutPayload](data)
	if err != nil {
		return err
	}
	// A session may only log itself out.
	if p.UserID != "" && p.UserID != c.UserID {
		return nil
	}
	s.presence.SetOffline(c.UserID)
	return nil
}

func (s *Server) reply(c *Client, ack string, payload any) {
	frame, err := MarshalFrame(EvAck, payload, ack)
	if err != nil {
		logger.Errorf("[gateway] marshal ack: %v", err)
		return
	}
	c.Enqueue(frame)
}

// replyError sends an explicit error to the caller only: a handler must
// never fail silently, the client has no other signal to roll back
// optimistic state.
func (s *Server) replyError(c *Client, event, ack string, err error) {
	frame, mErr := MarshalFrame(event, chatsvc.ErrorPayload{
		Code: errs.Code(err),
		Msg:  errs.Msg(err),
	}, ack)
	if mErr != nil {
		logger.Errorf("[gateway] marshal error frame: %v", mErr)
		return
	}
	c.Enqueue(frame)
}
