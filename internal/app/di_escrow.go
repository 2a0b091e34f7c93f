package app

import (
	"database/sql"
	"fmt"

	escrowHTTP "github.com/allisson/escrow/internal/escrow/http"
	escrowRepository "github.com/allisson/escrow/internal/escrow/repository"
	escrowUseCase "github.com/allisson/escrow/internal/escrow/usecase"
)

func (c *Container) SecretRecordRepository() (escrowUseCase.SecretRecordRepository, error) {
	return c.secretRecordRepository.get(func() (escrowUseCase.SecretRecordRepository, error) {
		return repositoryFor(c, "secret record",
			func(db *sql.DB) escrowUseCase.SecretRecordRepository {
				return escrowRepository.NewPostgreSQLSecretRecordRepository(db)
			},
			func(db *sql.DB) escrowUseCase.SecretRecordRepository {
				return escrowRepository.NewMySQLSecretRecordRepository(db)
			},
		)
	})
}

// VersionController needs nearly everything: storage, the outbox for retrieval
// notifications, the envelope, permissions and the audit log.
func (c *Container) VersionController() (escrowUseCase.VersionController, error) {
	return c.versionController.get(c.initVersionController)
}

func (c *Container) initVersionController() (escrowUseCase.VersionController, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for version controller: %w", err)
	}
	records, err := c.SecretRecordRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret record repository for version controller: %w", err)
	}
	outbox, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for version controller: %w", err)
	}
	envelope, err := c.Envelope()
	if err != nil {
		return nil, fmt.Errorf("failed to get envelope for version controller: %w", err)
	}
	evaluator, err := c.PermissionEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to get permission evaluator for version controller: %w", err)
	}
	audit, err := c.AuditLogUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log use case for version controller: %w", err)
	}

	controller := escrowUseCase.NewVersionController(
		escrowUseCase.Config{
			DefaultEmailDomain:     c.config.DefaultEmailDomain,
			RetrieveAuditAddresses: c.config.RetrieveAuditAddresses,
			SilentAuditAddresses:   c.config.SilentAuditAddresses,
		},
		txManager,
		records,
		outbox,
		envelope,
		evaluator,
		audit,
		c.Logger(),
	)
	return withMetrics(c, controller, escrowUseCase.NewVersionControllerWithMetrics)
}

func (c *Container) SecretHandler() (*escrowHTTP.SecretHandler, error) {
	return c.secretHandler.get(func() (*escrowHTTP.SecretHandler, error) {
		controller, err := c.VersionController()
		if err != nil {
			return nil, fmt.Errorf("failed to get version controller for secret handler: %w", err)
		}
		return escrowHTTP.NewSecretHandler(controller, c.Logger()), nil
	})
}
