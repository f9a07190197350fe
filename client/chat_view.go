package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Pabblusansky/Pelegram-sub000/client/reconciler"
	"github.com/Pabblusansky/Pelegram-sub000/client/timing"
	"github.com/Pabblusansky/Pelegram-sub000/logger"
	"github.com/Pabblusansky/Pelegram-sub000/module/chat/model"
	chatsvc "github.com/Pabblusansky/Pelegram-sub000/module/chat/service"
)

// ChatView wires one open chat: the reconciled store, pagination, search,
// unread coordination and typing, all fed from the session's event stream.
// Events carry a chat id; anything for another chat is ignored here, so a
// slow or stray event for a closed chat can never corrupt the open one.
type ChatView struct {
	session *Session
	api     *API

	Store  *reconciler.Store
	Pager  *reconciler.Pager
	Search *reconciler.Search
	Unread *reconciler.Unread
	Typing *reconciler.Typing
	Peers  *reconciler.PeerTyping

	// OnChatGone fires once when the chat is deleted globally or this user
	// is removed from it; the view is already closed when it runs.
	OnChatGone func(reason string)

	unsubs []func()
}

func OpenChat(session *Session, api *API, chatID string, scheduler timing.Scheduler) *ChatView {
	store := reconciler.NewStore(chatID, session.UserID(), time.Local)
	v := &ChatView{
		session: session,
		api:     api,
		Store:   store,
		Pager:   reconciler.NewPager(store, api.Messages, 50),
		Search:  reconciler.NewSearch(store, api.Search, api.Context, 10),
		Peers:   reconciler.NewPeerTyping(),
	}
	v.Unread = reconciler.NewUnread(store, scheduler, func(chatID string) {
		if _, err := api.MarkRead(context.Background(), chatID); err != nil {
			logger.Warnf("mark read: %v", err)
		}
	})
	v.Typing = reconciler.NewTyping(scheduler, func(isTyping bool) {
		_ = session.Emit(chatsvc.EvTyping, chatsvc.TypingPayload{ChatID: chatID, IsTyping: isTyping})
	})
	v.subscribe()
	return v
}

// Load pulls the newest page into the store.
func (v *ChatView) Load(ctx context.Context) error {
	msgs, hasMore, err := v.api.Messages(ctx, v.Store.ChatID(), "", 50)
	if err != nil {
		return err
	}
	v.Store.UpsertAll(msgs)
	if !hasMore {
		v.Store.SetNoMoreOlder()
	}
	// Opening at the bottom reads the loaded history; no scroll event fires.
	v.Unread.Opened()
	return nil
}

// Send issues the message over the socket and reconciles the acknowledged
// copy. The later room broadcast for the same message merges as a no-op.
func (v *ChatView) Send(ctx context.Context, content, replyTo string) (*reconciler.Message, error) {
	raw, err := v.session.Request(ctx, chatsvc.EvSendMessage, chatsvc.SendRequest{
		ChatID:  v.Store.ChatID(),
		Content: content,
		ReplyTo: replyTo,
	})
	if err != nil {
		return nil, err
	}
	var msg reconciler.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	v.Store.Upsert(&msg)
	v.Typing.Sent()
	return &msg, nil
}

// Edit records the pending content locally, then issues the HTTP edit. The
// socket echo resolves the transient; see Store.ApplyEdit.
func (v *ChatView) Edit(ctx context.Context, messageID, content string) error {
	v.Store.BeginEdit(messageID, content)
	if _, err := v.api.EditMessage(ctx, messageID, content); err != nil {
		v.Store.CancelEdit(messageID)
		return err
	}
	return nil
}

func (v *ChatView) subscribe() {
	chatID := v.Store.ChatID()
	on := func(event string, h Handler) {
		v.unsubs = append(v.unsubs, v.session.On(event, h))
	}

	on(chatsvc.EvReceiveMessage, func(data json.RawMessage) {
		var msg reconciler.Message
		if json.Unmarshal(data, &msg) != nil || msg.ChatID != chatID {
			return
		}
		if v.Store.Upsert(&msg) && !v.Store.Mine(&msg) {
			v.Unread.OnIncoming(&msg)
		}
	})

	on(chatsvc.EvMessageEdited, func(data json.RawMessage) {
		var msg reconciler.Message
		if json.Unmarshal(data, &msg) != nil || msg.ChatID != chatID {
			return
		}
		v.Store.ApplyEdit(&msg)
	})

	on(chatsvc.EvMessageDeleted, func(data json.RawMessage) {
		var p struct {
			MessageID string `json:"messageId"`
			ChatID    string `json:"chatId"`
		}
		if json.Unmarshal(data, &p) != nil || p.ChatID != chatID {
			return
		}
		v.Store.Remove(p.MessageID)
		v.Search.Withdraw(p.MessageID)
	})

	on(chatsvc.EvReactionUpdated, func(data json.RawMessage) {
		var p struct {
			MessageID string           `json:"messageId"`
			Reactions []model.Reaction `json:"reactions"`
		}
		if json.Unmarshal(data, &p) != nil {
			return
		}
		v.Store.ApplyReactions(p.MessageID, p.Reactions)
	})

	on(chatsvc.EvMessageStatus, func(data json.RawMessage) {
		var p struct {
			MessageID string              `json:"messageId"`
			Status    model.MessageStatus `json:"status"`
		}
		if json.Unmarshal(data, &p) != nil {
			return
		}
		v.Store.ApplyStatus(p.MessageID, p.Status)
	})

	on(chatsvc.EvChatDeletedGlobally, func(data json.RawMessage) {
		var p chatsvc.ChatDeletedPayload
		if json.Unmarshal(data, &p) != nil || p.ChatID != chatID {
			return
		}
		v.gone("deleted")
	})

	on(chatsvc.EvUserRemovedFromChat, func(data json.RawMessage) {
		var p chatsvc.UserRemovedPayload
		if json.Unmarshal(data, &p) != nil || p.ChatID != chatID {
			return
		}
		v.gone(p.Reason)
	})

	on(chatsvc.EvTyping, func(data json.RawMessage) {
		var p chatsvc.TypingPayload
		if json.Unmarshal(data, &p) != nil || p.ChatID != chatID {
			return
		}
		v.Peers.Apply(p.SenderID, p.IsTyping)
	})
}

// ToggleReaction is fire-and-forget over the socket; the authoritative set
// comes back as a reaction-updated broadcast.
func (v *ChatView) ToggleReaction(messageID, emoji string) error {
	return v.session.Emit(chatsvc.EvToggleReaction, map[string]string{
		"messageId":    messageID,
		"reactionType": emoji,
	})
}

func (v *ChatView) gone(reason string) {
	v.Close()
	if v.OnChatGone != nil {
		v.OnChatGone(reason)
	}
}

// Close detaches the event handlers and drops the timers. In-flight fetches
// for this chat resolve against the dropped store's chat id and are
// discarded there.
func (v *ChatView) Close() {
	for _, off := range v.unsubs {
		off()
	}
	v.unsubs = nil
	v.Unread.Stop()
	v.Typing.Blur()
}
