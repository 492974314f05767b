// Package apiclient talks to the family movies HTTP API with the household's
// basic-auth credential.
package apiclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Raleighawesome/family-movies/internal/model"
	"github.com/Raleighawesome/family-movies/internal/utils"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const maxErrorBody = 64 << 10

// Error is a non-2xx answer. Message is the server's "error" field; Body
// keeps any other payload for logs.
type Error struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("api responded with status %d: %s", e.StatusCode, e.Message)
	case e.Body != "":
		return fmt.Sprintf("api responded with status %d: %s", e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("api responded with status %d", e.StatusCode)
	}
}

// UserMessage is the text the server meant for display.
func (e *Error) UserMessage() string {
	return e.Message
}

type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

type Client struct {
	baseURL       *url.URL
	authorization string
	http          *http.Client
	log           logrus.FieldLogger
}

func New(cfg Config, log logrus.FieldLogger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		// Chat replies can take the agent up to 15s.
		timeout = 30 * time.Second
	}

	credential := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password))
	return &Client{
		baseURL:       base,
		authorization: "Basic " + credential,
		http:          utils.NewHTTPClient(timeout),
		log:           log,
	}, nil
}

func (c *Client) Household(ctx context.Context) (*model.HouseholdResponse, error) {
	var out model.HouseholdResponse
	if err := c.do(ctx, http.MethodGet, "/api/household", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListFilters(ctx context.Context) ([]model.Filter, error) {
	var out model.FiltersResponse
	if err := c.do(ctx, http.MethodGet, "/api/preferences", nil, &out); err != nil {
		return nil, err
	}
	return out.Filters, nil
}

func (c *Client) UpdateFilter(ctx context.Context, filter model.Filter) error {
	req := model.UpdateFilterRequest{
		LabelKey:     filter.LabelKey,
		MaxIntensity: float64(filter.MaxIntensity),
		HardNo:       filter.HardNo,
	}
	return c.do(ctx, http.MethodPut, "/api/preferences/filters", req, nil)
}

func (c *Client) AddFilters(ctx context.Context, labels []string) error {
	return c.do(ctx, http.MethodPost, "/api/preferences/filters", model.LabelsRequest{Labels: labels}, nil)
}

func (c *Client) RemoveFilters(ctx context.Context, labels []string) error {
	return c.do(ctx, http.MethodPost, "/api/preferences/filters/remove", model.LabelsRequest{Labels: labels}, nil)
}

func (c *Client) ResetFilters(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/preferences/reset", struct{}{}, nil)
}

func (c *Client) SendChat(ctx context.Context, req model.ChatRequest) (*model.ChatResponse, error) {
	var out model.ChatResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Messages(ctx context.Context) ([]model.ChatMessage, error) {
	var out model.MessagesResponse
	if err := c.do(ctx, http.MethodGet, "/api/chat/messages", nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *Client) LogMovie(ctx context.Context, req model.LogWatchRequest) error {
	return c.do(ctx, http.MethodPost, "/api/log-movie", req, nil)
}

func (c *Client) Block(ctx context.Context, req model.BlockRequest) error {
	return c.do(ctx, http.MethodPost, "/api/recommendations/do-not-recommend", req, nil)
}

// Watch delivers the household's invalidation events to fn until ctx is
// cancelled or the server closes the stream.
func (c *Client) Watch(ctx context.Context, fn func(model.InvalidationEvent)) error {
	wsURL := *c.baseURL
	if wsURL.Scheme == "https" {
		wsURL.Scheme = "wss"
	} else {
		wsURL.Scheme = "ws"
	}
	wsURL.Path = wsURL.Path + "/api/events"

	header := http.Header{}
	header.Set("Authorization", c.authorization)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return decodeError(resp)
		}
		return fmt.Errorf("failed to open event stream: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var event model.InvalidationEvent
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("event stream: %w", err)
		}
		fn(event)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.authorization)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.log.WithFields(logrus.Fields{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	}).Debug("api call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &Error{StatusCode: resp.StatusCode}

	var result model.ActionResult
	if err := json.Unmarshal(data, &result); err == nil && result.Error != "" {
		apiErr.Message = result.Error
	} else {
		apiErr.Body = strings.TrimSpace(string(data))
	}
	return apiErr
}
