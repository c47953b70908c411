package alert

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"
)

const (
	requestTimeout = 5 * time.Second
	maxAttempts    = 3
)

// Sender posts formatted events to webhooks. Server errors and 429 are
// retried with linear backoff; other 4xx responses fail immediately.
type Sender struct {
	Client   *http.Client
	Attempts int
	Backoff  time.Duration
}

var defaultSender = &Sender{
	Client:   &http.Client{Timeout: requestTimeout},
	Attempts: maxAttempts,
	Backoff:  time.Second,
}

// Send posts event to cfg.URL until it is accepted, rejected, the
// attempts run out or ctx ends.
func (s *Sender) Send(ctx context.Context, cfg AlertConfig, event AlertEvent) error {
	body, err := FormatPayload(cfg.Format, event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	attempts := max(s.Attempts, 1)
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * s.Backoff):
			}
		}

		retry, err := s.post(ctx, cfg, body)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("webhook failed after %d attempts: %w", attempts, lastErr)
}

func (s *Sender) post(ctx context.Context, cfg AlertConfig, body []byte) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return true, err
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return true, fmt.Errorf("webhook server error: HTTP %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("webhook rejected: HTTP %d", resp.StatusCode)
	}
}
