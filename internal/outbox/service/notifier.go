// Package service provides the notification transports used by the outbox worker.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/allisson/escrow/internal/outbox/domain"
)

// Notifier delivers a retrieval notification to its recipients.
type Notifier interface {
	Notify(ctx context.Context, payload *domain.SecretRetrievedPayload) error
}

type logNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a Notifier that writes notifications to the structured log.
func NewLogNotifier(logger *slog.Logger) Notifier {
	return &logNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *logNotifier) Notify(ctx context.Context, payload *domain.SecretRetrievedPayload) error {
	n.logger.InfoContext(ctx, "secret retrieval notification",
		slog.String("subject", payload.Subject),
		slog.String("recipients", strings.Join(payload.Recipients, ",")),
		slog.String("secret_type", payload.SecretType),
		slog.String("target_id", payload.TargetID),
		slog.String("hostname", payload.Hostname),
		slog.String("requester", payload.Requester),
		slog.String("record_id", payload.RecordID.String()),
		slog.Time("retrieved_at", payload.RetrievedAt),
	)
	return nil
}

type multiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier fans a notification out to every notifier. Delivery continues past a
// failing transport and the failures are returned together.
func NewMultiNotifier(notifiers ...Notifier) Notifier {
	if len(notifiers) == 1 {
		return notifiers[0]
	}
	return &multiNotifier{notifiers: notifiers}
}

// Notify implements Notifier.
func (m *multiNotifier) Notify(ctx context.Context, payload *domain.SecretRetrievedPayload) error {
	var result *multierror.Error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, payload); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// NotifierConfig selects and configures notification transports.
type NotifierConfig struct {
	// Kinds is a comma separated list of "log" and "webhook".
	Kinds   string
	Webhook WebhookConfig
}

// NewNotifier builds the notifier described by config.
func NewNotifier(config NotifierConfig, logger *slog.Logger) (Notifier, error) {
	var notifiers []Notifier
	for _, kind := range strings.Split(config.Kinds, ",") {
		switch strings.ToLower(strings.TrimSpace(kind)) {
		case "", "log":
			notifiers = append(notifiers, NewLogNotifier(logger))
		case "webhook":
			webhook, err := NewWebhookNotifier(config.Webhook, logger)
			if err != nil {
				return nil, err
			}
			notifiers = append(notifiers, webhook)
		default:
			return nil, fmt.Errorf("unknown notifier %q", kind)
		}
	}
	return NewMultiNotifier(notifiers...), nil
}
