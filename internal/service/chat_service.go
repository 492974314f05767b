package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"strings"

	"github.com/Raleighawesome/family-movies/internal/apperr"
	"github.com/Raleighawesome/family-movies/internal/config"
	"github.com/Raleighawesome/family-movies/internal/model"
	"github.com/Raleighawesome/family-movies/internal/storage"
	"github.com/Raleighawesome/family-movies/internal/webhook"

	"github.com/sirupsen/logrus"
)

// Poster delivers a JSON payload to an external webhook.
type Poster interface {
	Post(ctx context.Context, url string, payload interface{}) (*webhook.Response, error)
}

const previewFormat = `Preview response: you said "%s". Configure a chat webhook to enable full conversations.`

// ChatService relays household chat to the recommendation agent and keeps a
// best-effort log of the conversation.
type ChatService struct {
	storage     storage.Storage
	poster      Poster
	invalidator Invalidator
	chatURL     string
	cfg         config.ChatConfig
	log         logrus.FieldLogger
}

func NewChatService(store storage.Storage, poster Poster, invalidator Invalidator, webhookCfg config.WebhookConfig, chatCfg config.ChatConfig, log logrus.FieldLogger) *ChatService {
	if invalidator == nil {
		invalidator = nopInvalidator{}
	}
	if chatCfg.HistoryLimit <= 0 {
		chatCfg.HistoryLimit = 40
	}
	if chatCfg.FallbackMessage == "" {
		chatCfg.FallbackMessage = "The movie assistant is unavailable right now. Please try again shortly."
	}
	return &ChatService{
		storage:     store,
		poster:      poster,
		invalidator: invalidator,
		chatURL:     webhookCfg.ChatURL,
		cfg:         chatCfg,
		log:         log,
	}
}

type chatWebhookRequest struct {
	Message     string               `json:"message"`
	HouseholdID string               `json:"householdId"`
	Filters     []model.Filter       `json:"filters,omitempty"`
	History     []model.HistoryEntry `json:"history,omitempty"`
}

// Relay never fails because of the agent or the message log; those failures
// become the fallback reply and a log line respectively.
func (s *ChatService) Relay(ctx context.Context, hh *model.HouseholdContext, req model.ChatRequest) (*model.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, apperr.Validation("chat.Relay", "Message is required")
	}

	householdID := hh.Target(req.HouseholdID)
	userID := hh.User.ID
	s.persist(ctx, &model.ChatRecord{
		HouseholdID: householdID,
		Role:        model.RoleUser,
		Content:     message,
		Metadata:    map[string]interface{}{"filters": req.Filters, "history": req.History},
		UserID:      &userID,
	})

	var reply *model.ChatResponse
	if s.chatURL == "" {
		reply = &model.ChatResponse{Message: fmt.Sprintf(previewFormat, message)}
	} else {
		reply = s.callAgent(ctx, chatWebhookRequest{
			Message:     message,
			HouseholdID: householdID,
			Filters:     req.Filters,
			History:     req.History,
		})
	}

	record := &model.ChatRecord{
		HouseholdID: householdID,
		Role:        model.RoleAssistant,
		Content:     reply.Message,
	}
	if len(reply.Recommendations) > 0 {
		record.Metadata = map[string]interface{}{"recommendations": reply.Recommendations}
	}
	if s.persist(ctx, record) && reply.ID == "" {
		reply.ID = record.ID
	}

	s.invalidator.Invalidate(householdID, model.ViewChat)
	return reply, nil
}

func (s *ChatService) callAgent(ctx context.Context, payload chatWebhookRequest) *model.ChatResponse {
	fallback := &model.ChatResponse{Message: s.cfg.FallbackMessage}

	resp, err := s.poster.Post(ctx, s.chatURL, payload)
	if err != nil {
		s.log.WithError(err).WithField("household_id", payload.HouseholdID).Error("chat webhook failed")
		return fallback
	}

	reply, err := parseAgentReply(resp)
	if err != nil {
		s.log.WithError(err).WithField("household_id", payload.HouseholdID).Error("chat webhook returned an unusable body")
		return fallback
	}
	return reply
}

// parseAgentReply accepts {message, recommendations, id} JSON or plain text.
// A non-string message falls back to the raw body; a non-array
// recommendations field is ignored.
func parseAgentReply(resp *webhook.Response) (*model.ChatResponse, error) {
	raw := bytes.TrimSpace(resp.Body)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty response body")
	}

	if !looksLikeJSON(resp.ContentType, raw) {
		return &model.ChatResponse{Message: string(raw)}, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if json.Valid(raw) {
			return &model.ChatResponse{Message: string(raw)}, nil
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}

	reply := &model.ChatResponse{Message: string(raw)}
	if message, ok := jsonString(envelope["message"]); ok {
		reply.Message = message
	}

	var items []json.RawMessage
	if err := json.Unmarshal(envelope["recommendations"], &items); err == nil {
		reply.Recommendations = decodeRecommendations(items)
	}

	if id, ok := jsonString(envelope["id"]); ok {
		reply.ID = id
	}
	return reply, nil
}

func jsonString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func looksLikeJSON(contentType string, body []byte) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if mediaType == "application/json" || strings.HasSuffix(mediaType, "+json") {
			return true
		}
	}
	return body[0] == '{' || body[0] == '['
}

// decodeRecommendations keeps the items that decode and carry a title.
func decodeRecommendations(items []json.RawMessage) []model.Recommendation {
	recs := make([]model.Recommendation, 0, len(items))
	for _, item := range items {
		var rec model.Recommendation
		if err := json.Unmarshal(item, &rec); err != nil || strings.TrimSpace(rec.Title) == "" {
			continue
		}
		recs = append(recs, rec)
	}
	if len(recs) == 0 {
		return nil
	}
	return recs
}

// persist writes a chat row and reports whether it stuck. A missing table is
// expected before migrations and is not logged as an error.
func (s *ChatService) persist(ctx context.Context, record *model.ChatRecord) bool {
	err := s.storage.AddMessage(ctx, record)
	if err == nil {
		return true
	}
	if apperr.Is(err, apperr.KindMissingSchema) {
		s.log.WithError(err).Debug("chat log table missing, message not stored")
		return false
	}
	s.log.WithError(err).WithFields(logrus.Fields{
		"household_id": record.HouseholdID,
		"role":         record.Role,
	}).Error("failed to persist chat message")
	return false
}

// History returns the most recent messages of a household, oldest first.
func (s *ChatService) History(ctx context.Context, householdID string) ([]model.ChatMessage, error) {
	records, err := s.storage.ListMessages(ctx, householdID, s.cfg.HistoryLimit)
	if err != nil {
		if apperr.Is(err, apperr.KindMissingSchema) {
			return []model.ChatMessage{}, nil
		}
		return nil, err
	}

	messages := make([]model.ChatMessage, 0, len(records))
	for _, r := range records {
		messages = append(messages, model.ChatMessage{
			ID:              r.ID,
			Role:            r.Role,
			Content:         r.Content,
			CreatedAt:       r.CreatedAt,
			Recommendations: recommendationsFromMetadata(r.Metadata),
		})
	}
	return messages, nil
}

func recommendationsFromMetadata(metadata map[string]interface{}) []model.Recommendation {
	value, ok := metadata["recommendations"]
	if !ok {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	return decodeRecommendations(items)
}
