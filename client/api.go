package client

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Pabblusansky/Pelegram-sub000/client/reconciler"
	"github.com/Pabblusansky/Pelegram-sub000/module/chat/model"
	"github.com/Pabblusansky/Pelegram-sub000/tools/errs"
	"github.com/go-resty/resty/v2"
)

// API is the HTTP surface the reconciler pulls from: chat list, message
// pages, context windows, search, mark-as-read and the message mutations that
// go over HTTP rather than the socket.
type API struct {
	http *resty.Client
}

func NewAPI(baseURL, token string) *API {
	c := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token).
		SetTimeout(15 * time.Second).
		SetHeader("Content-Type", "application/json")
	return &API{http: c}
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (a *API) do(ctx context.Context, out any) *resty.Request {
	r := a.http.R().SetContext(ctx).SetError(&apiError{})
	if out != nil {
		r.SetResult(out)
	}
	return r
}

// Sustained 401s force re-authentication at the session layer; coded errors
// propagate so callers can distinguish that from transient I/O.
func check(resp *resty.Response, err error) error {
	if err != nil {
		return errs.ErrInternal.WrapMsg("http request", "err", err)
	}
	if resp.IsError() {
		if apiErr, ok := resp.Error().(*apiError); ok && apiErr.Code != 0 {
			return errs.NewCodeError(apiErr.Code, apiErr.Msg).WrapMsg("")
		}
		return errs.NewCodeError(resp.StatusCode(), resp.Status()).WrapMsg("")
	}
	return nil
}

func (a *API) ListChats(ctx context.Context) ([]*model.Chat, error) {
	var chats []*model.Chat
	resp, err := a.do(ctx, &chats).Get("/api/chats")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return chats, nil
}

func (a *API) GetChat(ctx context.Context, chatID string) (*model.Chat, error) {
	var chat model.Chat
	resp, err := a.do(ctx, &chat).Get("/api/chats/" + chatID)
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (a *API) CreateChat(ctx context.Context, participants []string, group bool, name string) (*model.Chat, error) {
	var chat model.Chat
	resp, err := a.do(ctx, &chat).
		SetBody(map[string]any{"participants": participants, "group": group, "name": name}).
		Post("/api/chats")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (a *API) DeleteChat(ctx context.Context, chatID string) error {
	resp, err := a.do(ctx, nil).Delete("/api/chats/" + chatID)
	return check(resp, err)
}

type messagePage struct {
	Messages []*reconciler.Message `json:"messages"`
	HasMore  bool                  `json:"hasMore"`
}

// Messages implements reconciler.PageFetch.
func (a *API) Messages(ctx context.Context, chatID, beforeID string, limit int) ([]*reconciler.Message, bool, error) {
	var page messagePage
	req := a.do(ctx, &page).SetQueryParam("limit", strconv.Itoa(limit))
	if beforeID != "" {
		req.SetQueryParam("before", beforeID)
	}
	resp, err := req.Get("/api/chats/" + chatID + "/messages")
	if err := check(resp, err); err != nil {
		return nil, false, err
	}
	return page.Messages, page.HasMore, nil
}

// Context implements reconciler.ContextFetch.
func (a *API) Context(ctx context.Context, chatID, messageID string, radius int) ([]*reconciler.Message, error) {
	var page messagePage
	resp, err := a.do(ctx, &page).
		SetQueryParam("radius", strconv.Itoa(radius)).
		Get(fmt.Sprintf("/api/chats/%s/messages/%s/context", chatID, messageID))
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return page.Messages, nil
}

// Search implements reconciler.SearchFetch.
func (a *API) Search(ctx context.Context, chatID, query string, limit int) ([]*reconciler.Message, error) {
	var page messagePage
	resp, err := a.do(ctx, &page).
		SetQueryParam("q", query).
		SetQueryParam("limit", strconv.Itoa(limit)).
		Get("/api/chats/" + chatID + "/messages/search")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return page.Messages, nil
}

func (a *API) MarkRead(ctx context.Context, chatID string) (*model.Chat, error) {
	var chat model.Chat
	resp, err := a.do(ctx, &chat).Post("/api/chats/" + chatID + "/read")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (a *API) EditMessage(ctx context.Context, messageID, content string) (*reconciler.Message, error) {
	var msg reconciler.Message
	resp, err := a.do(ctx, &msg).
		SetBody(map[string]string{"content": content}).
		Patch("/api/messages/" + messageID)
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (a *API) DeleteMessages(ctx context.Context, chatID string, messageIDs ...string) error {
	resp, err := a.do(ctx, nil).
		SetBody(map[string]any{"messageIds": messageIDs}).
		Delete("/api/chats/" + chatID + "/messages")
	return check(resp, err)
}

func (a *API) ForwardMessages(ctx context.Context, targetChatID string, messageIDs ...string) ([]*reconciler.Message, error) {
	var page messagePage
	resp, err := a.do(ctx, &page).
		SetBody(map[string]any{"targetChatId": targetChatID, "messageIds": messageIDs}).
		Post("/api/messages/forward")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return page.Messages, nil
}

func (a *API) PinMessage(ctx context.Context, chatID, messageID string) (*model.Chat, error) {
	var chat model.Chat
	resp, err := a.do(ctx, &chat).
		SetBody(map[string]string{"messageId": messageID}).
		Post("/api/chats/" + chatID + "/pin")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &chat, nil
}
