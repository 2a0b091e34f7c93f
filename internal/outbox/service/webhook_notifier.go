package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	cleanhttp "github.com/hashicorp/go-cleanhttp"
	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/allisson/escrow/internal/outbox/domain"
)

const (
	defaultWebhookTimeout      = 10 * time.Second
	defaultWebhookMaxRetries   = 3
	defaultWebhookRetryWaitMin = 500 * time.Millisecond
	defaultWebhookRetryWaitMax = 5 * time.Second
)

// WebhookConfig configures the webhook notifier.
type WebhookConfig struct {
	URL          string
	Timeout      time.Duration
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

type webhookNotifier struct {
	url    string
	client *retryablehttp.Client
}

// NewWebhookNotifier creates a Notifier that POSTs the notification as JSON to
// config.URL, retrying connection errors and 5xx responses.
func NewWebhookNotifier(config WebhookConfig, logger *slog.Logger) (Notifier, error) {
	if _, err := url.ParseRequestURI(config.URL); err != nil {
		return nil, fmt.Errorf("invalid webhook url: %w", err)
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultWebhookTimeout
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaultWebhookMaxRetries
	}
	if config.RetryWaitMin <= 0 {
		config.RetryWaitMin = defaultWebhookRetryWaitMin
	}
	if config.RetryWaitMax <= 0 {
		config.RetryWaitMax = defaultWebhookRetryWaitMax
	}

	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = config.Timeout

	client := &retryablehttp.Client{
		HTTPClient:   httpClient,
		RetryWaitMin: config.RetryWaitMin,
		RetryWaitMax: config.RetryWaitMax,
		RetryMax:     config.MaxRetries,
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
		Backoff:      exponentialBackoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}
	if logger != nil {
		client.Logger = logger
	}
	return &webhookNotifier{url: config.URL, client: client}, nil
}

// exponentialBackoff doubles the wait per attempt between min and max. Rate limited
// responses defer to the server's Retry-After.
func exponentialBackoff(minWait, maxWait time.Duration, attempt int, resp *http.Response) time.Duration {
	if resp != nil &&
		(resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable) {
		return retryablehttp.DefaultBackoff(minWait, maxWait, attempt, resp)
	}

	policy := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(minWait),
		backoff.WithMaxInterval(maxWait),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
	)
	wait := policy.NextBackOff()
	for i := 0; i < attempt; i++ {
		wait = policy.NextBackOff()
	}
	return wait
}

// Notify implements Notifier.
func (w *webhookNotifier) Notify(ctx context.Context, payload *domain.SecretRetrievedPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if resp != nil {
		defer resp.Body.Close() //nolint:errcheck
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.New("webhook delivery failed: " + resp.Status)
	}
	return nil
}
