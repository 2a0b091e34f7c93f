package app

import (
	"database/sql"
	"fmt"
	"time"

	outboxDomain "github.com/allisson/escrow/internal/outbox/domain"
	outboxRepository "github.com/allisson/escrow/internal/outbox/repository"
	outboxService "github.com/allisson/escrow/internal/outbox/service"
	outboxUseCase "github.com/allisson/escrow/internal/outbox/usecase"
)

// Per-request webhook retries. Event-level retries are governed by the outbox policy.
const (
	webhookRetryWaitMin = 500 * time.Millisecond
	webhookRetryWaitMax = 5 * time.Second
	webhookMaxRetries   = 3
)

func (c *Container) OutboxRepository() (outboxUseCase.OutboxEventRepository, error) {
	return c.outboxRepository.get(func() (outboxUseCase.OutboxEventRepository, error) {
		return repositoryFor(c, "outbox",
			func(db *sql.DB) outboxUseCase.OutboxEventRepository {
				return outboxRepository.NewPostgreSQLOutboxEventRepository(db)
			},
			func(db *sql.DB) outboxUseCase.OutboxEventRepository {
				return outboxRepository.NewMySQLOutboxEventRepository(db)
			},
		)
	})
}

// Notifier fans retrieval notifications out to every transport listed in NOTIFIER.
func (c *Container) Notifier() (outboxService.Notifier, error) {
	return c.notifier.get(func() (outboxService.Notifier, error) {
		return outboxService.NewNotifier(outboxService.NotifierConfig{
			Kinds: c.config.Notifier,
			Webhook: outboxService.WebhookConfig{
				URL:          c.config.NotificationWebhookURL,
				Timeout:      c.config.NotificationWebhookTimeout,
				MaxRetries:   webhookMaxRetries,
				RetryWaitMin: webhookRetryWaitMin,
				RetryWaitMax: webhookRetryWaitMax,
			},
		}, c.Logger())
	})
}

func (c *Container) OutboxUseCase() (outboxUseCase.UseCase, error) {
	return c.outboxUseCase.get(func() (outboxUseCase.UseCase, error) {
		txManager, err := c.TxManager()
		if err != nil {
			return nil, fmt.Errorf("failed to get tx manager for outbox use case: %w", err)
		}
		repo, err := c.OutboxRepository()
		if err != nil {
			return nil, fmt.Errorf("failed to get outbox repository for outbox use case: %w", err)
		}
		notifier, err := c.Notifier()
		if err != nil {
			return nil, fmt.Errorf("failed to get notifier for outbox use case: %w", err)
		}

		logger := c.Logger()
		return outboxUseCase.NewOutboxUseCase(
			outboxUseCase.Config{
				Interval:  c.config.OutboxInterval,
				BatchSize: c.config.OutboxBatchSize,
				Retry: outboxDomain.RetryPolicy{
					MaxRetries: c.config.OutboxMaxRetries,
					BaseDelay:  c.config.OutboxRetryBaseDelay,
					MaxDelay:   c.config.OutboxRetryMaxDelay,
				},
			},
			txManager,
			repo,
			outboxUseCase.NewNotificationProcessor(notifier, logger),
			logger,
		), nil
	})
}
