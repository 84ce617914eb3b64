package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/studymate/internal/pkg/response"
	"github.com/xxxsen/studymate/internal/service"
)

type ChatHandler struct {
	chat *service.ChatService
}

func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type chatRequest struct {
	Message             string                `json:"message"`
	ConversationHistory []service.ChatMessage `json:"conversationHistory"`
	Filters             searchFilters         `json:"filters"`
	UserLevel           string                `json:"userLevel"`
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, "invalid request")
		return
	}
	resp, err := h.chat.Answer(c.Request.Context(), service.ChatRequest{
		Message:   req.Message,
		History:   req.ConversationHistory,
		Filter:    req.Filters.filter(),
		UserLevel: req.UserLevel,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, resp)
}
