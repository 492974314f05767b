// Package webhook posts JSON payloads to the external recommendation agent.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Raleighawesome/family-movies/internal/config"
	"github.com/Raleighawesome/family-movies/internal/metrics"
	"github.com/Raleighawesome/family-movies/internal/utils"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

const maxResponseBytes = 1 << 20

// ErrNotConfigured is returned when the target URL is empty.
var ErrNotConfigured = errors.New("webhook url not configured")

// StatusError is a non-2xx answer from the agent. Body is for logs only.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook responded with status %d: %s", e.StatusCode, e.Body)
}

// Response is a successful webhook answer.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

type Client struct {
	http *http.Client
	cb   *gobreaker.CircuitBreaker[*Response]
	log  logrus.FieldLogger
}

func NewClient(cfg config.WebhookConfig, log logrus.FieldLogger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	threshold := cfg.Breaker.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	cb := gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        "recommendation-webhook",
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("webhook circuit breaker state changed")
			metrics.SetCircuitBreakerState(name, int(to))
		},
	})

	metrics.SetCircuitBreakerState(cb.Name(), int(cb.State()))

	return &Client{
		http: utils.NewHTTPClient(timeout),
		cb:   cb,
		log:  log,
	}
}

// Post sends payload as JSON to url. Transport errors, non-2xx statuses and
// an open breaker all come back as errors.
func (c *Client) Post(ctx context.Context, url string, payload interface{}) (*Response, error) {
	if url == "" {
		return nil, ErrNotConfigured
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()
	resp, err := c.cb.Execute(func() (*Response, error) {
		return c.do(ctx, url, data)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.log.WithError(err).WithField("url", url).Warn("webhook call rejected by circuit breaker")
			metrics.RecordWebhookCall(metrics.OutcomeRejected, time.Since(start))
			return nil, err
		}
		metrics.RecordWebhookCall(metrics.OutcomeFailure, time.Since(start))
		return nil, err
	}
	metrics.RecordWebhookCall(metrics.OutcomeSuccess, time.Since(start))
	return resp, nil
}

func (c *Client) do(ctx context.Context, url string, data []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// State reports the breaker state, mostly for health output.
func (c *Client) State() string {
	return c.cb.State().String()
}
