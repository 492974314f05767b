package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Raleighawesome/family-movies/internal/apperr"
	"github.com/Raleighawesome/family-movies/internal/config"
	"github.com/Raleighawesome/family-movies/internal/model"
	"github.com/Raleighawesome/family-movies/internal/storage"
	"github.com/Raleighawesome/family-movies/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hooks = config.WebhookConfig{
	LogMovieURL: "http://agent.local/log",
	BlockURL:    "http://agent.local/block",
}

func TestLogWatchRecordsAndForwards(t *testing.T) {
	store := storage.NewMemoryStorage()
	hh := testHousehold(t, store)
	poster := &fakePoster{}
	inv := &recordingInvalidator{}
	svc := NewFeedbackService(store, poster, inv, hooks, logger.Discard())

	rating := 5
	err := svc.LogWatch(context.Background(), hh, model.LogWatchRequest{
		MovieID:   "m1",
		WatchDate: "2024-05-01",
		Rating:    &rating,
	})
	require.NoError(t, err)

	watches := store.Watches(hh.HouseholdID)
	require.Len(t, watches, 1)
	assert.Equal(t, []string{hh.MembershipID}, watches[0].WatchedBy)

	calls := poster.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, hooks.LogMovieURL, calls[0].URL)
	payload := calls[0].Payload.(logMovieWebhookRequest)
	assert.Equal(t, "m1", payload.MovieID)
	assert.Equal(t, hh.HouseholdID, payload.HouseholdID)
	assert.Equal(t, []string{hh.MembershipID}, payload.WatchedBy)

	require.Len(t, inv.Events(), 1)
	assert.Equal(t, []string{model.ViewHome}, inv.Events()[0].Views)
}

func TestLogWatchValidation(t *testing.T) {
	store := storage.NewMemoryStorage()
	hh := testHousehold(t, store)
	svc := NewFeedbackService(store, &fakePoster{}, nil, hooks, logger.Discard())
	ctx := context.Background()

	err := svc.LogWatch(ctx, hh, model.LogWatchRequest{})
	assert.Equal(t, "movieId is required", apperr.Message(err))

	err = svc.LogWatch(ctx, hh, model.LogWatchRequest{MovieID: "m1", WatchDate: "05/01/2024"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	rating := 9
	err = svc.LogWatch(ctx, hh, model.LogWatchRequest{MovieID: "m1", Rating: &rating})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestLogWatchWebhookFailure(t *testing.T) {
	store := storage.NewMemoryStorage()
	hh := testHousehold(t, store)
	svc := NewFeedbackService(store, &fakePoster{err: errors.New("503")}, nil, hooks, logger.Discard())

	err := svc.LogWatch(context.Background(), hh, model.LogWatchRequest{MovieID: "m1"})
	assert.Equal(t, apperr.KindWebhook, apperr.KindOf(err))
	assert.Equal(t, "Unable to log the movie right now", apperr.Message(err))
	assert.Equal(t, 502, apperr.HTTPStatus(apperr.KindOf(err)))
}

func TestLogWatchWithoutWebhookOrSchema(t *testing.T) {
	poster := &fakePoster{}
	svc := NewFeedbackService(unmigratedStore(t), poster, nil, config.WebhookConfig{}, logger.Discard())
	hh := &model.HouseholdContext{User: *admin, MembershipID: "m1", HouseholdID: "hh"}

	require.NoError(t, svc.LogWatch(context.Background(), hh, model.LogWatchRequest{MovieID: "m1"}))
	assert.Empty(t, poster.Calls())
}

func TestBlock(t *testing.T) {
	store := storage.NewMemoryStorage()
	hh := testHousehold(t, store)
	poster := &fakePoster{}
	svc := NewFeedbackService(store, poster, nil, hooks, logger.Discard())
	ctx := context.Background()

	require.NoError(t, svc.Block(ctx, hh, model.BlockRequest{MovieID: "m9", HouseholdID: "someone-else"}))
	calls := poster.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, blockWebhookRequest{MovieID: "m9", HouseholdID: hh.HouseholdID}, calls[0].Payload)

	err := svc.Block(ctx, hh, model.BlockRequest{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	failing := NewFeedbackService(store, &fakePoster{err: errors.New("timeout")}, nil, hooks, logger.Discard())
	err = failing.Block(ctx, hh, model.BlockRequest{MovieID: "m9"})
	assert.Equal(t, "Unable to update preferences", apperr.Message(err))
}
