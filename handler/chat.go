package handler

import (
	"net/http"

	"github.com/SpikeIreland/clarence-sub005/model"
	"github.com/SpikeIreland/clarence-sub005/pkg/logger"
	"github.com/SpikeIreland/clarence-sub005/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ChatHandler struct {
	store  *service.NegotiationStore
	chat   *service.ChatService
	events service.Broadcaster
}

func NewChatHandler(store *service.NegotiationStore, chat *service.ChatService, events service.Broadcaster) *ChatHandler {
	return &ChatHandler{store: store, chat: chat, events: events}
}

// List returns the negotiation's chat log in append order.
func (h *ChatHandler) List(c *gin.Context) {
	ws := ownedWorkspace(c, h.store)
	if ws == nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": ws.Messages()})
}

type PostMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// Post appends the user's message, asks the reply source for CLARENCE's
// answer and appends that too. A reply failure is narrated in the chat the
// same way generation failures are; the request itself still succeeds.
func (h *ChatHandler) Post(c *gin.Context) {
	ws := ownedWorkspace(c, h.store)
	if ws == nil {
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	userMsg := ws.AppendChat(model.SenderUser, req.Message, uuid.New().String())
	h.broadcast(ws, userMsg)

	replyText, err := h.chat.Reply(c.Request.Context(), ws.Context.ID, req.Message)
	if err != nil {
		logger.Warn(c.Request.Context(), "chat reply failed",
			"negotiation_id", ws.Context.ID,
			"error", err,
		)
		replyText = "I'm having trouble reaching my reasoning service right now. Please try that again in a moment."
	}

	reply := ws.AppendChat(model.SenderClarence, replyText, uuid.New().String())
	h.broadcast(ws, reply)

	c.JSON(http.StatusOK, gin.H{
		"message": userMsg,
		"reply":   reply,
	})
}

func (h *ChatHandler) broadcast(ws *service.Workspace, msg model.ChatMessage) {
	if h.events == nil {
		return
	}
	h.events.BroadcastRaw(ws.Context.ID, "chat.message", msg)
}
