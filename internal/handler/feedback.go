package handler

import (
	"net/http"

	"github.com/Raleighawesome/family-movies/internal/model"
	"github.com/Raleighawesome/family-movies/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type FeedbackHandler struct {
	householdScope
	feedback *service.FeedbackService
}

func NewFeedbackHandler(households *service.HouseholdService, feedback *service.FeedbackService, log logrus.FieldLogger) *FeedbackHandler {
	return &FeedbackHandler{
		householdScope: householdScope{households: households, log: log},
		feedback:       feedback,
	}
}

func (h *FeedbackHandler) LogMovie(c *gin.Context) {
	var req model.LogWatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.log, err)
		return
	}
	hh, ok := h.require(c)
	if !ok {
		return
	}
	if err := h.feedback.LogWatch(c.Request.Context(), hh, req); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, model.ActionResult{OK: true})
}

func (h *FeedbackHandler) DoNotRecommend(c *gin.Context) {
	var req model.BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.log, err)
		return
	}
	hh, ok := h.require(c)
	if !ok {
		return
	}
	if err := h.feedback.Block(c.Request.Context(), hh, req); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, model.ActionResult{OK: true})
}
