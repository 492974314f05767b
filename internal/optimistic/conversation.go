package optimistic

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Raleighawesome/family-movies/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// historyWindow is how many earlier messages travel with each send.
const historyWindow = 8

const (
	chatFailureMessage  = "We couldn't reach the movie assistant. Please try again."
	chatSuccessMessage  = "The movie assistant replied."
	logMovieSuccess     = "Saved to your family log."
	logMovieFailure     = "Unable to log the movie right now."
	blockFailureMessage = "Couldn't update that preference yet."
)

var ErrEmptyMessage = errors.New("optimistic: message is empty")

// ChatAPI is the server side of the chat shell.
type ChatAPI interface {
	SendChat(ctx context.Context, req model.ChatRequest) (*model.ChatResponse, error)
	Messages(ctx context.Context) ([]model.ChatMessage, error)
	LogMovie(ctx context.Context, req model.LogWatchRequest) error
	Block(ctx context.Context, req model.BlockRequest) error
}

// MessageSignature fingerprints a transcript. Order matters.
func MessageSignature(messages []model.ChatMessage) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, m.ID+"::"+strconv.FormatBool(m.Pending))
	}
	return strings.Join(parts, "|")
}

// Conversation models the chat shell of one household.
type Conversation struct {
	api     ChatAPI
	engine  *Engine[model.ChatMessage]
	toaster *Toaster
	log     logrus.FieldLogger
	now     func() time.Time

	mu    sync.Mutex
	draft string
}

func NewConversation(api ChatAPI, toaster *Toaster, initial []model.ChatMessage, log logrus.FieldLogger) *Conversation {
	return &Conversation{
		api:     api,
		engine:  NewEngine(initial, MessageSignature, toaster),
		toaster: toaster,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Messages is the transcript as shown, pending placeholder included.
func (c *Conversation) Messages() []model.ChatMessage {
	return c.engine.Local()
}

// Sending reports whether a message is awaiting its reply.
func (c *Conversation) Sending() bool {
	return c.engine.State() == Pending
}

// Draft returns the text of the last send that failed, so it can be retried.
func (c *Conversation) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

func (c *Conversation) Engine() *Engine[model.ChatMessage] {
	return c.engine
}

// Send shows the user's message and a pending reply straight away, then
// replaces the placeholder with the assistant's answer. On failure the
// transcript goes back to what it was before the send.
func (c *Conversation) Send(ctx context.Context, text string, filters []model.Filter) (*model.ChatMessage, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyMessage
	}

	history := historyOf(c.engine.Local())
	now := c.now()
	userMessage := model.ChatMessage{
		ID:        "user-" + uuid.NewString(),
		Role:      model.RoleUser,
		Content:   trimmed,
		CreatedAt: now,
	}
	placeholderID := "assistant-pending-" + uuid.NewString()
	placeholder := model.ChatMessage{
		ID:        placeholderID,
		Role:      model.RoleAssistant,
		CreatedAt: now,
		Pending:   true,
	}

	m, err := c.engine.Begin(Intent[model.ChatMessage]{
		Kind: "send",
		Next: func(current []model.ChatMessage) []model.ChatMessage {
			return append(current, userMessage, placeholder)
		},
		Success: chatSuccessMessage,
		Failure: Fixed(chatFailureMessage),
	})
	if err != nil {
		return nil, err
	}
	c.setDraft("")

	resp, err := c.api.SendChat(ctx, model.ChatRequest{
		Message: trimmed,
		Filters: filters,
		History: history,
	})
	if err != nil {
		c.log.WithError(err).Warn("chat send failed")
		c.setDraft(trimmed)
		if rbErr := m.Rollback(err); rbErr != nil && !errors.Is(rbErr, ErrStale) {
			return nil, rbErr
		}
		return nil, err
	}

	reply := model.ChatMessage{
		ID:              resp.ID,
		Role:            model.RoleAssistant,
		Content:         resp.Message,
		CreatedAt:       c.now(),
		Recommendations: resp.Recommendations,
	}
	if reply.ID == "" {
		reply.ID = "assistant-" + uuid.NewString()
	}

	final := make([]model.ChatMessage, 0, len(m.Optimistic()))
	for _, msg := range m.Optimistic() {
		if msg.ID != placeholderID {
			final = append(final, msg)
		}
	}
	final = append(final, reply)

	if err := m.CommitWith(final); err != nil && !errors.Is(err, ErrStale) {
		return nil, err
	}
	return &reply, nil
}

// Refresh fetches the stored transcript and offers it to the engine.
func (c *Conversation) Refresh(ctx context.Context) (Outcome, error) {
	messages, err := c.api.Messages(ctx)
	if err != nil {
		return Suppressed, err
	}
	outcome := c.engine.Receive(messages)
	c.log.WithFields(logrus.Fields{
		"outcome":  outcome.String(),
		"messages": len(messages),
	}).Debug("received chat snapshot")
	return outcome, nil
}

// HandleInvalidation refreshes when the event marks the chat stale.
func (c *Conversation) HandleInvalidation(ctx context.Context, event model.InvalidationEvent) error {
	if !hasView(event, model.ViewChat) {
		return nil
	}
	_, err := c.Refresh(ctx)
	return err
}

// LogMovie records that the household watched a movie.
func (c *Conversation) LogMovie(ctx context.Context, req model.LogWatchRequest) error {
	if err := c.api.LogMovie(ctx, req); err != nil {
		c.log.WithError(err).WithField("movie_id", req.MovieID).Warn("log movie failed")
		c.toastError(logMovieFailure, err)
		return err
	}
	c.toastSuccess(logMovieSuccess)
	return nil
}

// Block asks the recommender to stop suggesting movie.
func (c *Conversation) Block(ctx context.Context, movie model.Recommendation) error {
	if err := c.api.Block(ctx, model.BlockRequest{MovieID: movie.MovieID}); err != nil {
		c.log.WithError(err).WithField("movie_id", movie.MovieID).Warn("block recommendation failed")
		c.toastError(blockFailureMessage, err)
		return err
	}
	c.toastSuccess(fmt.Sprintf("We'll skip %s going forward.", movie.Title))
	return nil
}

func (c *Conversation) setDraft(text string) {
	c.mu.Lock()
	c.draft = text
	c.mu.Unlock()
}

func (c *Conversation) toastSuccess(message string) {
	if c.toaster != nil {
		c.toaster.Success(message)
	}
}

func (c *Conversation) toastError(message string, cause error) {
	if c.toaster != nil {
		c.toaster.Error(message, cause)
	}
}

func historyOf(messages []model.ChatMessage) []model.HistoryEntry {
	if len(messages) > historyWindow {
		messages = messages[len(messages)-historyWindow:]
	}
	history := make([]model.HistoryEntry, 0, len(messages))
	for _, m := range messages {
		history = append(history, model.HistoryEntry{Role: m.Role, Content: m.Content})
	}
	return history
}
