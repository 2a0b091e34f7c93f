package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/escrow/internal/outbox/domain"
)

type failingNotifier struct {
	err   error
	calls int
}

func (f *failingNotifier) Notify(context.Context, *domain.SecretRetrievedPayload) error {
	f.calls++
	return f.err
}

func testPayload() *domain.SecretRetrievedPayload {
	return &domain.SecretRetrievedPayload{
		RecordID:    uuid.Must(uuid.NewV7()),
		SecretType:  "luks",
		TargetID:    "vol-1",
		Tag:         "default",
		Hostname:    "server01",
		Requester:   "admin@example.com",
		Recipients:  []string{"admin@example.com", "owner@example.com"},
		Subject:     "Luks Linux disk encryption passphrase retrieval notification",
		RetrievedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastWebhook(t *testing.T, url string) Notifier {
	t.Helper()
	n, err := NewWebhookNotifier(WebhookConfig{
		URL:          url,
		Timeout:      time.Second,
		MaxRetries:   2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	}, discardLogger())
	require.NoError(t, err)
	return n
}

func TestWebhookNotifier(t *testing.T) {
	t.Run("PostsPayload", func(t *testing.T) {
		var received domain.SecretRetrievedPayload
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.WriteHeader(http.StatusAccepted)
		}))
		defer server.Close()

		payload := testPayload()
		require.NoError(t, fastWebhook(t, server.URL).Notify(context.Background(), payload))
		assert.Equal(t, payload.RecordID, received.RecordID)
		assert.Equal(t, payload.Recipients, received.Recipients)
	})

	t.Run("RetriesServerErrors", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		require.NoError(t, fastWebhook(t, server.URL).Notify(context.Background(), testPayload()))
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("GivesUpAfterMaxRetries", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		err := fastWebhook(t, server.URL).Notify(context.Background(), testPayload())
		assert.Error(t, err)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("ClientErrorIsNotRetried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		err := fastWebhook(t, server.URL).Notify(context.Background(), testPayload())
		assert.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("InvalidURL", func(t *testing.T) {
		_, err := NewWebhookNotifier(WebhookConfig{URL: "not a url"}, discardLogger())
		assert.Error(t, err)
	})
}

func TestExponentialBackoff(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, exponentialBackoff(100*time.Millisecond, time.Second, 0, nil))
	assert.Equal(t, 150*time.Millisecond, exponentialBackoff(100*time.Millisecond, time.Second, 1, nil))
	assert.Equal(t, time.Second, exponentialBackoff(100*time.Millisecond, time.Second, 20, nil))
}

func TestMultiNotifier(t *testing.T) {
	first := &failingNotifier{err: errors.New("first down")}
	second := &failingNotifier{}
	third := &failingNotifier{err: errors.New("third down")}

	err := NewMultiNotifier(first, second, third).Notify(context.Background(), testPayload())
	require.Error(t, err)

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 2)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 1, third.calls)

	assert.NoError(t, NewMultiNotifier(second).Notify(context.Background(), testPayload()))
}

func TestNewNotifier(t *testing.T) {
	n, err := NewNotifier(NotifierConfig{Kinds: "log"}, discardLogger())
	require.NoError(t, err)
	assert.NoError(t, n.Notify(context.Background(), testPayload()))

	n, err = NewNotifier(NotifierConfig{
		Kinds:   "log, webhook",
		Webhook: WebhookConfig{URL: "http://localhost:9/hook"},
	}, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &multiNotifier{}, n)

	_, err = NewNotifier(NotifierConfig{Kinds: "smtp"}, discardLogger())
	assert.Error(t, err)
}
