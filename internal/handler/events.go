package handler

import (
	"github.com/Raleighawesome/family-movies/internal/realtime"
	"github.com/Raleighawesome/family-movies/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// EventsHandler streams view invalidations for the caller's household.
type EventsHandler struct {
	householdScope
	hub      *realtime.Hub
	upgrader websocket.Upgrader
}

func NewEventsHandler(households *service.HouseholdService, hub *realtime.Hub, allowedOrigins []string, log logrus.FieldLogger) *EventsHandler {
	return &EventsHandler{
		householdScope: householdScope{households: households, log: log},
		hub:            hub,
		upgrader:       realtime.Upgrader(allowedOrigins),
	}
}

func (h *EventsHandler) Websocket(c *gin.Context) {
	hh, ok := h.require(c)
	if !ok {
		return
	}
	h.hub.ServeWebsocket(h.upgrader, c.Writer, c.Request, hh.HouseholdID)
}

func (h *EventsHandler) Stream(c *gin.Context) {
	hh, ok := h.require(c)
	if !ok {
		return
	}
	h.hub.ServeSSE(c.Writer, c.Request, hh.HouseholdID)
}
