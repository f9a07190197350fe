package api

import (
	"net/http"
	"strconv"

	"github.com/Pabblusansky/Pelegram-sub000/middleware"
	chatsvc "github.com/Pabblusansky/Pelegram-sub000/module/chat/service"
	"github.com/Pabblusansky/Pelegram-sub000/tools/errs"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
	defaultRadius   = 10
	searchLimit     = 50
)

func (h *Handler) listChats(c *gin.Context) {
	chats, err := h.svc.Store().ListChats(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, errs.ErrInternal.WrapMsg("list chats", "err", err))
		return
	}
	c.JSON(http.StatusOK, chats)
}

func (h *Handler) createChat(c *gin.Context) {
	var req chatsvc.CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.ErrBadRequest.WrapMsg("invalid body"))
		return
	}
	chat, err := h.svc.CreateChat(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, chat)
}

func (h *Handler) getChat(c *gin.Context) {
	chat, err := h.svc.Store().GetChat(c.Request.Context(), c.Param("chatId"))
	if err != nil {
		fail(c, errs.ErrNotFound.WrapMsg("chat not found"))
		return
	}
	if !chat.HasParticipant(middleware.UserID(c)) {
		fail(c, errs.ErrForbidden.WrapMsg("not a participant"))
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h *Handler) deleteChat(c *gin.Context) {
	if err := h.svc.DeleteChat(c.Request.Context(), middleware.UserID(c), c.Param("chatId")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) removeParticipant(c *gin.Context) {
	chat, err := h.svc.RemoveParticipant(c.Request.Context(), middleware.UserID(c), c.Param("chatId"), c.Param("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h *Handler) pinMessage(c *gin.Context) {
	var req struct {
		MessageID string `json:"messageId"` // empty unpins
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.ErrBadRequest.WrapMsg("invalid body"))
		return
	}
	chat, err := h.svc.Pin(c.Request.Context(), middleware.UserID(c), c.Param("chatId"), req.MessageID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h *Handler) markRead(c *gin.Context) {
	chat, err := h.svc.MarkRead(c.Request.Context(), middleware.UserID(c), c.Param("chatId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

// listMessages pages backward in time. `before` anchors on a message id; the
// response is ascending so the client can prepend it wholesale.
func (h *Handler) listMessages(c *gin.Context) {
	chatID := c.Param("chatId")
	if !h.participant(c, chatID) {
		return
	}
	limit := clampLimit(c.Query("limit"), defaultPageSize)
	msgs, err := h.svc.Store().ListMessages(c.Request.Context(), chatID, c.Query("before"), limit)
	if err != nil {
		fail(c, errs.ErrInternal.WrapMsg("list messages", "err", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": msgs,
		// Fewer rows than requested means history is exhausted. Clients stop
		// asking for older pages once this flips.
		"hasMore": len(msgs) == limit,
	})
}

func (h *Handler) deleteMessages(c *gin.Context) {
	var req struct {
		MessageIDs []string `json:"messageIds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.ErrBadRequest.WrapMsg("invalid body"))
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.UserID(c), c.Param("chatId"), req.MessageIDs...); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) searchMessages(c *gin.Context) {
	chatID := c.Param("chatId")
	if !h.participant(c, chatID) {
		return
	}
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusOK, gin.H{"messages": []any{}})
		return
	}
	msgs, err := h.svc.Store().SearchMessages(c.Request.Context(), chatID, q, searchLimit)
	if err != nil {
		fail(c, errs.ErrInternal.WrapMsg("search messages", "err", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// messageContext returns a window of messages around one message so a search
// hit can be jumped to without loading the intervening history.
func (h *Handler) messageContext(c *gin.Context) {
	chatID := c.Param("chatId")
	if !h.participant(c, chatID) {
		return
	}
	radius := clampLimit(c.Query("radius"), defaultRadius)
	msgs, err := h.svc.Store().ContextAround(c.Request.Context(), chatID, c.Param("messageId"), radius)
	if err != nil {
		fail(c, errs.ErrNotFound.WrapMsg("message not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *Handler) editMessage(c *gin.Context) {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.ErrBadRequest.WrapMsg("invalid body"))
		return
	}
	messageID := c.Param("messageId")
	actorID := middleware.UserID(c)
	msg, err := h.svc.Edit(c.Request.Context(), actorID, messageID, req.Content)
	if err != nil {
		// The actor's other devices showed the optimistic edit too; tell them
		// to roll it back.
		h.emitter.ToUser(actorID, chatsvc.EvEditError, chatsvc.ErrorPayload{
			Code: errs.Code(err),
			Msg:  errs.Msg(err),
		})
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) forwardMessages(c *gin.Context) {
	var req struct {
		TargetChatID string   `json:"targetChatId"`
		MessageIDs   []string `json:"messageIds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.ErrBadRequest.WrapMsg("invalid body"))
		return
	}
	from := chatsvc.Sender{ID: middleware.UserID(c), Name: middleware.UserName(c)}
	msgs, err := h.svc.Forward(c.Request.Context(), from, req.TargetChatID, req.MessageIDs...)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"messages": msgs})
}

func (h *Handler) participant(c *gin.Context, chatID string) bool {
	chat, err := h.svc.Store().GetChat(c.Request.Context(), chatID)
	if err != nil {
		fail(c, errs.ErrNotFound.WrapMsg("chat not found"))
		return false
	}
	if !chat.HasParticipant(middleware.UserID(c)) {
		fail(c, errs.ErrForbidden.WrapMsg("not a participant"))
		return false
	}
	return true
}

func clampLimit(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > maxPageSize {
		return maxPageSize
	}
	return n
}

// Coded errors carry HTTP-shaped codes already.
func fail(c *gin.Context, err error) {
	c.JSON(errs.Code(err), gin.H{
		"code": errs.Code(err),
		"msg":  errs.Msg(err),
	})
}
