package app

import (
	"database/sql"
	"fmt"

	auditHTTP "github.com/allisson/escrow/internal/audit/http"
	auditRepository "github.com/allisson/escrow/internal/audit/repository"
	auditService "github.com/allisson/escrow/internal/audit/service"
	auditUseCase "github.com/allisson/escrow/internal/audit/usecase"
)

func (c *Container) AuditLogRepository() (auditUseCase.AuditLogRepository, error) {
	return c.auditLogRepository.get(func() (auditUseCase.AuditLogRepository, error) {
		return repositoryFor(c, "audit log",
			func(db *sql.DB) auditUseCase.AuditLogRepository {
				return auditRepository.NewPostgreSQLAuditLogRepository(db)
			},
			func(db *sql.DB) auditUseCase.AuditLogRepository { return auditRepository.NewMySQLAuditLogRepository(db) },
		)
	})
}

// AuditLogUseCase signs entries with keys derived from the shared keyset.
func (c *Container) AuditLogUseCase() (auditUseCase.AuditLogUseCase, error) {
	return c.auditLogUseCase.get(func() (auditUseCase.AuditLogUseCase, error) {
		repo, err := c.AuditLogRepository()
		if err != nil {
			return nil, fmt.Errorf("failed to get audit log repository for audit log use case: %w", err)
		}
		keyset, err := c.Keyset()
		if err != nil {
			return nil, fmt.Errorf("failed to get keyset for audit log use case: %w", err)
		}
		evaluator, err := c.PermissionEvaluator()
		if err != nil {
			return nil, fmt.Errorf("failed to get permission evaluator for audit log use case: %w", err)
		}

		base := auditUseCase.NewAuditLogUseCase(repo, auditService.NewAuditSigner(), keyset, evaluator, c.Logger())
		return withMetrics(c, base, auditUseCase.NewAuditLogUseCaseWithMetrics)
	})
}

func (c *Container) AuditLogHandler() (*auditHTTP.AuditLogHandler, error) {
	return c.auditLogHandler.get(func() (*auditHTTP.AuditLogHandler, error) {
		uc, err := c.AuditLogUseCase()
		if err != nil {
			return nil, fmt.Errorf("failed to get audit log use case for audit log handler: %w", err)
		}
		return auditHTTP.NewAuditLogHandler(uc, c.Logger()), nil
	})
}
