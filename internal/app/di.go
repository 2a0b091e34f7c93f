// Package app wires the escrow components together. Each accessor on Container builds
// its component on first use and caches it, so commands only pay for what they touch.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	auditHTTP "github.com/allisson/escrow/internal/audit/http"
	auditUseCase "github.com/allisson/escrow/internal/audit/usecase"
	authHTTP "github.com/allisson/escrow/internal/auth/http"
	authService "github.com/allisson/escrow/internal/auth/service"
	authUseCase "github.com/allisson/escrow/internal/auth/usecase"
	"github.com/allisson/escrow/internal/config"
	cryptoDomain "github.com/allisson/escrow/internal/crypto/domain"
	cryptoService "github.com/allisson/escrow/internal/crypto/service"
	"github.com/allisson/escrow/internal/database"
	escrowHTTP "github.com/allisson/escrow/internal/escrow/http"
	escrowUseCase "github.com/allisson/escrow/internal/escrow/usecase"
	"github.com/allisson/escrow/internal/http"
	"github.com/allisson/escrow/internal/metrics"
	outboxService "github.com/allisson/escrow/internal/outbox/service"
	outboxUseCase "github.com/allisson/escrow/internal/outbox/usecase"
)

// Container owns every long-lived dependency of the process.
type Container struct {
	config *config.Config
	mu     sync.Mutex

	logger          component[*slog.Logger]
	db              component[*sql.DB]
	txManager       component[database.TxManager]
	metricsProvider component[*metrics.Provider]
	businessMetrics component[metrics.BusinessMetrics]

	keyset     component[*cryptoDomain.Keyset]
	kmsService component[cryptoService.KMSService]
	envelope   component[cryptoService.Envelope]

	secretService       component[authService.SecretService]
	tokenService        component[authService.TokenService]
	permissionEvaluator component[authService.PermissionEvaluator]
	clientRepository    component[authUseCase.ClientRepository]
	tokenRepository     component[authUseCase.TokenRepository]
	clientUseCase       component[authUseCase.ClientUseCase]
	tokenUseCase        component[authUseCase.TokenUseCase]
	tokenHandler        component[*authHTTP.TokenHandler]

	auditLogRepository component[auditUseCase.AuditLogRepository]
	auditLogUseCase    component[auditUseCase.AuditLogUseCase]
	auditLogHandler    component[*auditHTTP.AuditLogHandler]

	secretRecordRepository component[escrowUseCase.SecretRecordRepository]
	versionController      component[escrowUseCase.VersionController]
	secretHandler          component[*escrowHTTP.SecretHandler]

	outboxRepository component[outboxUseCase.OutboxEventRepository]
	notifier         component[outboxService.Notifier]
	outboxUseCase    component[outboxUseCase.UseCase]

	httpServer    component[*http.Server]
	metricsServer component[*http.MetricsServer]
}

func NewContainer(cfg *config.Config) *Container {
	return &Container{config: cfg}
}

func (c *Container) Config() *config.Config {
	return c.config
}

// Logger writes JSON to stdout at LOG_LEVEL, info when unset or unknown.
func (c *Container) Logger() *slog.Logger {
	return c.logger.value(func() *slog.Logger {
		var level slog.Level
		if err := level.UnmarshalText([]byte(c.config.LogLevel)); err != nil {
			level = slog.LevelInfo
		}
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	})
}

func (c *Container) DB() (*sql.DB, error) {
	return c.db.get(func() (*sql.DB, error) {
		db, err := database.Connect(database.Config{
			Driver:             c.config.DBDriver,
			ConnectionString:   c.config.DBConnectionString,
			MaxOpenConnections: c.config.DBMaxOpenConnections,
			MaxIdleConnections: c.config.DBMaxIdleConnections,
			ConnMaxLifetime:    c.config.DBConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return db, nil
	})
}

// TxManager runs transactions at READ COMMITTED; the single-active invariant relies on
// row locks rather than serializable isolation.
func (c *Container) TxManager() (database.TxManager, error) {
	return c.txManager.get(func() (database.TxManager, error) {
		db, err := c.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
		}
		return database.NewTxManager(db, database.WithIsolation(sql.LevelReadCommitted)), nil
	})
}

// MetricsProvider is nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	return c.metricsProvider.get(func() (*metrics.Provider, error) {
		if !c.config.MetricsEnabled {
			return nil, nil
		}
		provider, err := metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics provider: %w", err)
		}
		return provider, nil
	})
}

// BusinessMetrics falls back to a no-op recorder when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	return c.businessMetrics.get(func() (metrics.BusinessMetrics, error) {
		provider, err := c.MetricsProvider()
		if err != nil {
			return nil, err
		}
		if provider == nil {
			return metrics.NewNoOpBusinessMetrics(), nil
		}
		m, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			return nil, fmt.Errorf("failed to create business metrics: %w", err)
		}
		return m, nil
	})
}

// withMetrics wraps a use case in its metrics decorator when metrics are enabled.
func withMetrics[T any](c *Container, base T, decorate func(T, metrics.BusinessMetrics) T) (T, error) {
	if !c.config.MetricsEnabled {
		return base, nil
	}
	m, err := c.BusinessMetrics()
	if err != nil {
		return base, err
	}
	return decorate(base, m), nil
}

// HTTPServer is the escrow API with every route registered.
func (c *Container) HTTPServer() (*http.Server, error) {
	return c.httpServer.get(c.initHTTPServer)
}

func (c *Container) initHTTPServer() (*http.Server, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}
	tokenHandler, err := c.TokenHandler()
	if err != nil {
		return nil, err
	}
	secretHandler, err := c.SecretHandler()
	if err != nil {
		return nil, err
	}
	auditLogHandler, err := c.AuditLogHandler()
	if err != nil {
		return nil, err
	}
	tokenUseCase, err := c.TokenUseCase()
	if err != nil {
		return nil, err
	}
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, err
	}

	server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, c.Logger())
	server.SetupRouter(
		c.config,
		tokenHandler,
		secretHandler,
		auditLogHandler,
		tokenUseCase,
		c.TokenService(),
		provider,
		c.config.MetricsNamespace,
	)
	return server, nil
}

// MetricsServer is nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	return c.metricsServer.get(func() (*http.MetricsServer, error) {
		provider, err := c.MetricsProvider()
		if err != nil || provider == nil {
			return nil, err
		}
		return http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider), nil
	})
}

// Shutdown releases whatever was built, servers first and the database last. Key
// material is wiped from memory.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if srv, ok := c.httpServer.built(); ok {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
		}
	}
	if srv, ok := c.metricsServer.built(); ok && srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	if provider, ok := c.metricsProvider.built(); ok && provider != nil {
		if err := provider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}
	if keyset, ok := c.keyset.built(); ok {
		keyset.Zero()
	}
	if db, ok := c.db.built(); ok {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database close: %w", err))
		}
	}
	return errors.Join(errs...)
}

// repositoryFor picks the dialect implementation for DB_DRIVER.
func repositoryFor[T any](c *Container, name string, postgres, mysql func(*sql.DB) T) (T, error) {
	var zero T
	db, err := c.DB()
	if err != nil {
		return zero, fmt.Errorf("failed to get database for %s repository: %w", name, err)
	}
	switch c.config.DBDriver {
	case "postgres":
		return postgres(db), nil
	case "mysql":
		return mysql(db), nil
	default:
		return zero, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}
