package handler

import (
	"net/http"

	"github.com/Raleighawesome/family-movies/internal/model"
	"github.com/Raleighawesome/family-movies/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type HouseholdHandler struct {
	householdScope
}

func NewHouseholdHandler(households *service.HouseholdService, log logrus.FieldLogger) *HouseholdHandler {
	return &HouseholdHandler{householdScope{households: households, log: log}}
}

func (h *HouseholdHandler) GetHousehold(c *gin.Context) {
	hh, ok := h.require(c)
	if !ok {
		return
	}
	members, err := h.households.ListMembers(c.Request.Context(), hh.HouseholdID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, model.HouseholdResponse{Household: *hh, Members: members})
}
