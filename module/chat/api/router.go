package api

import (
	"github.com/Pabblusansky/Pelegram-sub000/middleware"
	chatsvc "github.com/Pabblusansky/Pelegram-sub000/module/chat/service"
	"github.com/Pabblusansky/Pelegram-sub000/tools/security"
	"github.com/gin-gonic/gin"
)

// Handler exposes the REST surface of the chat service. Mutations go through
// the same ChatService the socket handlers use, so the fan-out rules are
// identical regardless of transport.
type Handler struct {
	svc     *chatsvc.ChatService
	emitter chatsvc.Emitter
}

func NewHandler(svc *chatsvc.ChatService, emitter chatsvc.Emitter) *Handler {
	return &Handler{svc: svc, emitter: emitter}
}

func (h *Handler) Register(r *gin.Engine, jwtOpts security.Options) {
	g := r.Group("/api", middleware.Auth(jwtOpts))

	g.GET("/chats", h.listChats)
	g.POST("/chats", h.createChat)
	g.GET("/chats/:chatId", h.getChat)
	g.DELETE("/chats/:chatId", h.deleteChat)
	g.DELETE("/chats/:chatId/participants/:userId", h.removeParticipant)
	g.POST("/chats/:chatId/pin", h.pinMessage)
	g.POST("/chats/:chatId/read", h.markRead)

	g.GET("/chats/:chatId/messages", h.listMessages)
	g.DELETE("/chats/:chatId/messages", h.deleteMessages)
	g.GET("/chats/:chatId/messages/search", h.searchMessages)
	g.GET("/chats/:chatId/messages/:messageId/context", h.messageContext)
	g.PATCH("/messages/:messageId", h.editMessage)
	g.POST("/messages/forward", h.forwardMessages)
}
