package handler

import (
	"net/http"

	"github.com/Raleighawesome/family-movies/internal/model"
	"github.com/Raleighawesome/family-movies/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type ChatHandler struct {
	householdScope
	chatService *service.ChatService
}

func NewChatHandler(households *service.HouseholdService, chatService *service.ChatService, log logrus.FieldLogger) *ChatHandler {
	return &ChatHandler{
		householdScope: householdScope{households: households, log: log},
		chatService:    chatService,
	}
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.log, err)
		return
	}
	hh, ok := h.require(c)
	if !ok {
		return
	}

	reply, err := h.chatService.Relay(c.Request.Context(), hh, req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	hh, ok := h.require(c)
	if !ok {
		return
	}
	messages, err := h.chatService.History(c.Request.Context(), hh.HouseholdID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, model.MessagesResponse{HouseholdID: hh.HouseholdID, Messages: messages})
}
