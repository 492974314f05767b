package handler

import (
	"net/http"

	"github.com/Raleighawesome/family-movies/internal/model"
	"github.com/Raleighawesome/family-movies/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type PreferenceHandler struct {
	householdScope
	preferences *service.PreferenceService
}

func NewPreferenceHandler(households *service.HouseholdService, preferences *service.PreferenceService, log logrus.FieldLogger) *PreferenceHandler {
	return &PreferenceHandler{
		householdScope: householdScope{households: households, log: log},
		preferences:    preferences,
	}
}

func (h *PreferenceHandler) ListFilters(c *gin.Context) {
	hh, ok := h.require(c)
	if !ok {
		return
	}
	filters, err := h.preferences.ListFilters(c.Request.Context(), hh.HouseholdID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, model.FiltersResponse{HouseholdName: hh.HouseholdName, Filters: filters})
}

func (h *PreferenceHandler) UpdateFilter(c *gin.Context) {
	var req model.UpdateFilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.log, err)
		return
	}
	hh, ok := h.require(c)
	if !ok {
		return
	}
	if _, err := h.preferences.UpdateFilter(c.Request.Context(), hh.HouseholdID, req.LabelKey, req.MaxIntensity, req.HardNo); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, model.ActionResult{OK: true})
}

func (h *PreferenceHandler) AddFilters(c *gin.Context) {
	var req model.LabelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.log, err)
		return
	}
	hh, ok := h.require(c)
	if !ok {
		return
	}
	result, err := h.preferences.AddFilters(c.Request.Context(), hh.HouseholdID, req.Labels)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, model.ActionResult{OK: true, Added: result.Added, Skipped: result.Skipped})
}

func (h *PreferenceHandler) RemoveFilters(c *gin.Context) {
	var req model.LabelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.log, err)
		return
	}
	hh, ok := h.require(c)
	if !ok {
		return
	}
	if _, err := h.preferences.RemoveFilters(c.Request.Context(), hh.HouseholdID, req.Labels); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, model.ActionResult{OK: true})
}

func (h *PreferenceHandler) ResetFilters(c *gin.Context) {
	hh, ok := h.require(c)
	if !ok {
		return
	}
	if _, err := h.preferences.ResetFilters(c.Request.Context(), hh.HouseholdID); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, model.ActionResult{OK: true})
}
