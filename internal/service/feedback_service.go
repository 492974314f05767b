package service

import (
	"context"
	"strings"
	"time"

	"github.com/Raleighawesome/family-movies/internal/apperr"
	"github.com/Raleighawesome/family-movies/internal/config"
	"github.com/Raleighawesome/family-movies/internal/model"
	"github.com/Raleighawesome/family-movies/internal/storage"

	"github.com/sirupsen/logrus"
)

const watchDateLayout = "2006-01-02"

// FeedbackService records what a household watched and which titles it never
// wants recommended again.
type FeedbackService struct {
	storage     storage.Storage
	poster      Poster
	invalidator Invalidator
	logMovieURL string
	blockURL    string
	log         logrus.FieldLogger
}

func NewFeedbackService(store storage.Storage, poster Poster, invalidator Invalidator, cfg config.WebhookConfig, log logrus.FieldLogger) *FeedbackService {
	if invalidator == nil {
		invalidator = nopInvalidator{}
	}
	return &FeedbackService{
		storage:     store,
		poster:      poster,
		invalidator: invalidator,
		logMovieURL: cfg.LogMovieURL,
		blockURL:    cfg.BlockURL,
		log:         log,
	}
}

type logMovieWebhookRequest struct {
	MovieID     string   `json:"movieId"`
	WatchDate   string   `json:"watchDate,omitempty"`
	WatchedBy   []string `json:"watchedBy,omitempty"`
	Rating      *int     `json:"rating,omitempty"`
	HouseholdID string   `json:"householdId"`
}

type blockWebhookRequest struct {
	MovieID     string `json:"movieId"`
	HouseholdID string `json:"householdId"`
}

func (s *FeedbackService) LogWatch(ctx context.Context, hh *model.HouseholdContext, req model.LogWatchRequest) error {
	const op = "feedback.LogWatch"

	movieID := strings.TrimSpace(req.MovieID)
	if movieID == "" {
		return apperr.Validation(op, "movieId is required")
	}
	if req.WatchDate != "" {
		if _, err := time.Parse(watchDateLayout, req.WatchDate); err != nil {
			return apperr.Validation(op, "watchDate must be formatted as YYYY-MM-DD")
		}
	}
	if req.Rating != nil && (*req.Rating < 1 || *req.Rating > 5) {
		return apperr.Validation(op, "rating must be between 1 and 5")
	}

	householdID := hh.Target(req.HouseholdID)
	watchedBy := req.WatchedBy
	if len(watchedBy) == 0 && hh.MembershipID != "" {
		watchedBy = []string{hh.MembershipID}
	}

	record := &model.WatchRecord{
		HouseholdID: householdID,
		MovieID:     movieID,
		WatchDate:   req.WatchDate,
		WatchedBy:   watchedBy,
		Rating:      req.Rating,
	}
	if err := s.storage.RecordWatch(ctx, record); err != nil {
		if !apperr.Is(err, apperr.KindMissingSchema) {
			return err
		}
		s.log.WithError(err).Debug("watch log table missing, forwarding only")
	}

	if s.logMovieURL != "" {
		_, err := s.poster.Post(ctx, s.logMovieURL, logMovieWebhookRequest{
			MovieID:     movieID,
			WatchDate:   req.WatchDate,
			WatchedBy:   watchedBy,
			Rating:      req.Rating,
			HouseholdID: householdID,
		})
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"household_id": householdID,
				"movie_id":     movieID,
			}).Error("log movie webhook failed")
			return apperr.Webhook(op, "Unable to log the movie right now", err)
		}
	}

	s.log.WithFields(logrus.Fields{
		"household_id": householdID,
		"movie_id":     movieID,
	}).Info("movie logged")

	s.invalidator.Invalidate(householdID, model.ViewHome)
	return nil
}

func (s *FeedbackService) Block(ctx context.Context, hh *model.HouseholdContext, req model.BlockRequest) error {
	const op = "feedback.Block"

	movieID := strings.TrimSpace(req.MovieID)
	if movieID == "" {
		return apperr.Validation(op, "movieId is required")
	}
	householdID := hh.Target(req.HouseholdID)

	if s.blockURL != "" {
		_, err := s.poster.Post(ctx, s.blockURL, blockWebhookRequest{MovieID: movieID, HouseholdID: householdID})
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"household_id": householdID,
				"movie_id":     movieID,
			}).Error("do-not-recommend webhook failed")
			return apperr.Webhook(op, "Unable to update preferences", err)
		}
	}

	s.invalidator.Invalidate(householdID, model.ViewHome)
	return nil
}
