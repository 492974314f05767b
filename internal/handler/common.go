// Package handler exposes the services over HTTP.
package handler

import (
	"net/http"

	"github.com/Raleighawesome/family-movies/internal/apperr"
	"github.com/Raleighawesome/family-movies/internal/auth"
	"github.com/Raleighawesome/family-movies/internal/middleware"
	"github.com/Raleighawesome/family-movies/internal/model"
	"github.com/Raleighawesome/family-movies/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const invalidBody = "Invalid request body"

// householdScope resolves the caller's household for household-scoped routes.
type householdScope struct {
	households *service.HouseholdService
	log        logrus.FieldLogger
}

// require writes the error response itself and returns false when the request
// cannot continue.
func (s householdScope) require(c *gin.Context) (*model.HouseholdContext, bool) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		writeError(c, s.log, apperr.Unauthorized("handler.requireHousehold"))
		return nil, false
	}
	hh, err := s.households.RequireActiveHousehold(c.Request.Context(), identity)
	if err != nil {
		writeError(c, s.log, err)
		return nil, false
	}
	return hh, true
}

// writeError maps err onto a status code and the {"ok":false,"error":...} body.
func writeError(c *gin.Context, log logrus.FieldLogger, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	message := apperr.Message(err)
	if kind == apperr.KindInternal {
		message = "Internal server error"
	}

	entry := log.WithError(err).WithFields(logrus.Fields{
		"path":       c.Request.URL.Path,
		"kind":       kind,
		"request_id": middleware.GetRequestID(c),
	})
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, model.ActionResult{OK: false, Error: message})
}

func badRequest(c *gin.Context, log logrus.FieldLogger, err error) {
	log.WithError(err).WithField("path", c.Request.URL.Path).Debug("could not decode request body")
	c.AbortWithStatusJSON(http.StatusBadRequest, model.ActionResult{OK: false, Error: invalidBody})
}
