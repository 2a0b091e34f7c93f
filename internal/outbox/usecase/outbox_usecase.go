// Package usecase runs the outbox worker that delivers retrieval notifications.
package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/allisson/escrow/internal/database"
	"github.com/allisson/escrow/internal/outbox/domain"
	"github.com/allisson/escrow/internal/outbox/service"
)

// Config holds outbox worker settings.
type Config struct {
	Interval  time.Duration
	BatchSize int
	Retry     domain.RetryPolicy
}

// OutboxEventRepository defines outbox event persistence.
type OutboxEventRepository interface {
	Create(ctx context.Context, event *domain.OutboxEvent) error
	// GetPendingEvents locks up to limit pending events due at now.
	GetPendingEvents(ctx context.Context, now time.Time, limit int) ([]*domain.OutboxEvent, error)
	Update(ctx context.Context, event *domain.OutboxEvent) error
}

// EventProcessor handles one event type family.
type EventProcessor interface {
	Process(ctx context.Context, event *domain.OutboxEvent) error
}

// UseCase is the outbox worker.
type UseCase interface {
	// Start polls for pending events every Interval until ctx is done.
	Start(ctx context.Context) error
	// ProcessEvents delivers one batch of pending events.
	ProcessEvents(ctx context.Context) error
}

// OutboxUseCase polls pending events and hands them to an EventProcessor.
type OutboxUseCase struct {
	config         Config
	txManager      database.TxManager
	outboxRepo     OutboxEventRepository
	eventProcessor EventProcessor
	logger         *slog.Logger
	now            func() time.Time
}

// NewOutboxUseCase creates an OutboxUseCase.
func NewOutboxUseCase(
	config Config,
	txManager database.TxManager,
	outboxRepo OutboxEventRepository,
	eventProcessor EventProcessor,
	logger *slog.Logger,
) *OutboxUseCase {
	return &OutboxUseCase{
		config:         config,
		txManager:      txManager,
		outboxRepo:     outboxRepo,
		eventProcessor: eventProcessor,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Start implements UseCase.
func (uc *OutboxUseCase) Start(ctx context.Context) error {
	uc.logger.Info("starting outbox worker",
		slog.Duration("interval", uc.config.Interval),
		slog.Int("batch_size", uc.config.BatchSize),
		slog.Int("max_retries", uc.config.Retry.MaxRetries),
	)

	ticker := time.NewTicker(uc.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			uc.logger.Info("stopping outbox worker")
			return ctx.Err()
		case <-ticker.C:
			if err := uc.ProcessEvents(ctx); err != nil {
				uc.logger.Error("failed to process outbox events", slog.Any("error", err))
			}
		}
	}
}

// ProcessEvents implements UseCase. The batch stays locked until the transaction ends
// so concurrent workers never deliver the same event. A failed delivery is rescheduled
// according to the retry policy.
func (uc *OutboxUseCase) ProcessEvents(ctx context.Context) error {
	return uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		events, err := uc.outboxRepo.GetPendingEvents(ctx, uc.now(), uc.config.BatchSize)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		uc.logger.Debug("processing outbox events", slog.Int("count", len(events)))

		for _, event := range events {
			uc.deliver(ctx, event)
			if err := uc.outboxRepo.Update(ctx, event); err != nil {
				return err
			}
		}
		return nil
	})
}

func (uc *OutboxUseCase) deliver(ctx context.Context, event *domain.OutboxEvent) {
	err := uc.eventProcessor.Process(ctx, event)
	now := uc.now()
	if err == nil {
		event.MarkProcessed(now)
		return
	}

	event.MarkFailed(err, uc.config.Retry, now)
	attrs := []any{
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", event.EventType),
		slog.Int("retries", event.Retries),
		slog.Any("error", err),
	}
	if event.Status == domain.OutboxEventStatusFailed {
		uc.logger.Error("giving up on outbox event", attrs...)
		return
	}
	uc.logger.Warn("outbox delivery failed, will retry",
		append(attrs, slog.Time("next_attempt_at", event.NextAttemptAt))...)
}

// NotificationProcessor delivers secret.retrieved events through a Notifier.
type NotificationProcessor struct {
	notifier service.Notifier
	logger   *slog.Logger
}

// NewNotificationProcessor creates a NotificationProcessor.
func NewNotificationProcessor(notifier service.Notifier, logger *slog.Logger) *NotificationProcessor {
	return &NotificationProcessor{
		notifier: notifier,
		logger:   logger,
	}
}

// Process implements EventProcessor. Unknown event types are logged and acknowledged.
func (p *NotificationProcessor) Process(ctx context.Context, event *domain.OutboxEvent) error {
	switch event.EventType {
	case domain.EventTypeSecretRetrieved:
		payload, err := domain.DecodeSecretRetrieved(event)
		if err != nil {
			return err
		}
		return p.notifier.Notify(ctx, payload)
	default:
		p.logger.Warn("unknown outbox event type",
			slog.String("event_id", event.ID.String()),
			slog.String("event_type", event.EventType),
		)
		return nil
	}
}
