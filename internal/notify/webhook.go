package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/nhle/hotel-ops/internal/model"
)

// WebhookSink posts events as JSON to an HTTP endpoint with Bearer token
// authentication.
type WebhookSink struct {
	url        string
	token      string
	httpClient *http.Client
}

// NewWebhookSink creates a webhook sink. An empty token sends no
// Authorization header; a zero timeout uses 10 seconds.
func NewWebhookSink(url, token string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSink{
		url:   url,
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name implements Sink.
func (w *WebhookSink) Name() string { return "webhook" }

// Send posts ev once. Rate limiting and server errors come back as
// retryable errors; other client errors are permanent.
func (w *WebhookSink) Send(ctx context.Context, ev model.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return Permanent(fmt.Errorf("marshaling event %s: %w", ev.ID, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(data))
	if err != nil {
		return Permanent(fmt.Errorf("creating request: %w", err))
	}

	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Hotelops-Event", string(ev.Kind))
	req.Header.Set("Idempotency-Key", ev.ID)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting %s to webhook: %w", ev.Kind, err)
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RetryAfterError{
			Wait: retryAfterDuration(resp),
			Err:  fmt.Errorf("rate limited (429) posting %s", ev.Kind),
		}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Permanent(fmt.Errorf(
			"authentication failed (%d): check the webhook token", resp.StatusCode,
		))
	case resp.StatusCode >= 500:
		return fmt.Errorf("webhook server error (%d): %s", resp.StatusCode, string(respBody))
	default:
		return Permanent(fmt.Errorf(
			"unexpected status %d posting %s: %s", resp.StatusCode, ev.Kind, string(respBody),
		))
	}
}

// retryAfterDuration reads the Retry-After header in seconds. Zero means
// the header was missing or unparseable.
func retryAfterDuration(resp *http.Response) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}
