package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Raleighawesome/family-movies/internal/auth"
	"github.com/Raleighawesome/family-movies/internal/config"
	"github.com/Raleighawesome/family-movies/internal/handler"
	"github.com/Raleighawesome/family-movies/internal/model"
	"github.com/Raleighawesome/family-movies/internal/optimistic"
	"github.com/Raleighawesome/family-movies/internal/realtime"
	"github.com/Raleighawesome/family-movies/internal/service"
	"github.com/Raleighawesome/family-movies/internal/storage"
	"github.com/Raleighawesome/family-movies/internal/webhook"
	"github.com/Raleighawesome/family-movies/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

type ClientSuite struct {
	suite.Suite
	server *httptest.Server
	hub    *realtime.Hub
	hh     *model.HouseholdContext
	client *Client
	ctx    context.Context
}

func (s *ClientSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.ctx = context.Background()

	cfg := &config.Config{
		Auth: config.AuthConfig{
			Username:   "admin",
			Password:   "movies",
			UserID:     "basic-auth-user",
			Email:      "family@example.com",
			BcryptCost: bcrypt.MinCost,
		},
		Webhook: config.WebhookConfig{Timeout: time.Second},
	}
	log := logger.Discard()

	gate, err := auth.NewGate(cfg.Auth)
	s.Require().NoError(err)
	store := storage.NewMemoryStorage()
	s.hub = realtime.NewHub(log)
	poster := webhook.NewClient(cfg.Webhook, log)
	households := service.NewHouseholdService(store, log)

	identity := &model.Identity{ID: cfg.Auth.UserID, Email: cfg.Auth.Email, Username: cfg.Auth.Username}
	s.hh, err = households.EnsureBootstrap(s.ctx, identity, "The Parkers", "Pat")
	s.Require().NoError(err)

	s.server = httptest.NewServer(handler.NewRouter(handler.Dependencies{
		Config:      cfg,
		Gate:        gate,
		Households:  households,
		Preferences: service.NewPreferenceService(store, s.hub, log),
		Chat:        service.NewChatService(store, poster, s.hub, cfg.Webhook, cfg.Chat, log),
		Feedback:    service.NewFeedbackService(store, poster, s.hub, cfg.Webhook, log),
		Hub:         s.hub,
		Log:         log,
	}))

	s.client, err = New(Config{BaseURL: s.server.URL + "/", Username: "admin", Password: "movies"}, log)
	s.Require().NoError(err)
}

func (s *ClientSuite) TearDownTest() {
	s.server.Close()
}

func (s *ClientSuite) TestHousehold() {
	resp, err := s.client.Household(s.ctx)
	s.Require().NoError(err)
	s.Equal(s.hh.HouseholdID, resp.Household.HouseholdID)
	s.Require().Len(resp.Members, 1)
	s.Equal("Pat", resp.Members[0].Label())
}

func (s *ClientSuite) TestPreferenceBoardAgainstServer() {
	filters, err := s.client.ListFilters(s.ctx)
	s.Require().NoError(err)
	s.Empty(filters)

	toaster := optimistic.NewToaster(optimistic.WithTTL(time.Minute))
	board := optimistic.NewPreferenceBoard(s.client, toaster, filters, logger.Discard())

	s.Require().NoError(board.Reset(s.ctx))
	filters, err = s.client.ListFilters(s.ctx)
	s.Require().NoError(err)
	s.Equal(optimistic.FilterSignature(model.PresetFilters()), optimistic.FilterSignature(filters))

	s.Require().NoError(board.SetIntensity("scary", 13.7))
	s.Require().NoError(board.Save(s.ctx, "scary"))
	s.Require().NoError(board.ToggleHardNo("violence", true))
	s.Require().NoError(board.Save(s.ctx, "violence"))

	s.Require().NoError(board.Add(s.ctx, "  Jump Scares!! "))
	toast, ok := toaster.Current()
	s.Require().True(ok)
	s.Equal("Filters added", toast.Message)

	filters, err = s.client.ListFilters(s.ctx)
	s.Require().NoError(err)
	byKey := make(map[string]model.Filter)
	for _, f := range filters {
		byKey[f.LabelKey] = f
	}
	s.Equal(10, byKey["scary"].MaxIntensity)
	s.Equal(model.Filter{LabelKey: "violence", MaxIntensity: 0, HardNo: true}, byKey["violence"])
	s.Contains(byKey, "jump_scares")
	s.Equal(optimistic.FilterSignature(filters), optimistic.FilterSignature(board.Filters()))

	s.Require().NoError(board.Remove(s.ctx, []string{"jump_scares"}))
	outcome, err := board.Refresh(s.ctx)
	s.Require().NoError(err)
	s.Equal(optimistic.Adopted, outcome)
	s.Len(board.Filters(), len(model.DefaultFilters))
}

func (s *ClientSuite) TestServerErrorsCarryMessage() {
	s.Require().NoError(s.client.ResetFilters(s.ctx))

	err := s.client.AddFilters(s.ctx, []string{"Scary"})
	var apiErr *Error
	s.Require().True(errors.As(err, &apiErr))
	s.Equal(http.StatusConflict, apiErr.StatusCode)
	s.Equal("Those filters already exist", apiErr.UserMessage())

	err = s.client.UpdateFilter(s.ctx, model.Filter{LabelKey: "!!!", MaxIntensity: 3})
	s.Require().True(errors.As(err, &apiErr))
	s.Equal(http.StatusBadRequest, apiErr.StatusCode)
	s.NotEmpty(apiErr.UserMessage())
}

func (s *ClientSuite) TestWrongPassword() {
	client, err := New(Config{BaseURL: s.server.URL, Username: "admin", Password: "popcorn"}, logger.Discard())
	s.Require().NoError(err)

	_, err = client.ListFilters(s.ctx)
	var apiErr *Error
	s.Require().True(errors.As(err, &apiErr))
	s.Equal(http.StatusUnauthorized, apiErr.StatusCode)
	s.Equal("Unauthorized", apiErr.UserMessage())
}

func (s *ClientSuite) TestConversationPreviewMode() {
	conv := optimistic.NewConversation(s.client, optimistic.NewToaster(), nil, logger.Discard())

	reply, err := conv.Send(s.ctx, "hi", nil)
	s.Require().NoError(err)
	s.Contains(reply.Content, `"hi"`)
	s.True(strings.HasPrefix(reply.Content, "Preview response"))

	messages := conv.Messages()
	s.Require().Len(messages, 2)
	s.Equal("hi", messages[0].Content)

	stored, err := s.client.Messages(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(stored, 2)
	s.Equal(model.RoleUser, stored[0].Role)
	s.Equal(reply.ID, stored[1].ID)
}

func (s *ClientSuite) TestLogMovieAndBlock() {
	rating := 4
	s.Require().NoError(s.client.LogMovie(s.ctx, model.LogWatchRequest{MovieID: "tt0317219", WatchDate: "2024-05-01", Rating: &rating}))
	s.Require().NoError(s.client.Block(s.ctx, model.BlockRequest{MovieID: "tt1049413"}))

	err := s.client.LogMovie(s.ctx, model.LogWatchRequest{MovieID: " "})
	var apiErr *Error
	s.Require().True(errors.As(err, &apiErr))
	s.Equal(http.StatusBadRequest, apiErr.StatusCode)
}

func (s *ClientSuite) TestWatchReceivesInvalidations() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	events := make(chan model.InvalidationEvent, 4)
	done := make(chan error, 1)
	go func() {
		done <- s.client.Watch(ctx, func(event model.InvalidationEvent) { events <- event })
	}()

	s.Require().Eventually(func() bool {
		return s.hub.Subscribers(s.hh.HouseholdID) == 1
	}, 2*time.Second, 10*time.Millisecond)

	s.Require().NoError(s.client.ResetFilters(s.ctx))

	select {
	case event := <-events:
		s.Equal(model.EventInvalidate, event.Type)
		s.Equal(s.hh.HouseholdID, event.HouseholdID)
		s.ElementsMatch([]string{model.ViewPreferences, model.ViewHome}, event.Views)
	case <-time.After(2 * time.Second):
		s.Fail("no invalidation event received")
	}

	cancel()
	select {
	case err := <-done:
		s.ErrorIs(err, context.Canceled)
	case <-time.After(2 * time.Second):
		s.Fail("Watch did not return after cancel")
	}
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New(Config{BaseURL: "ftp://example.com"}, logger.Discard())
	assert.Error(t, err)

	client, err := New(Config{BaseURL: "https://movies.example.com/"}, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, "https://movies.example.com", client.baseURL.String())
}
