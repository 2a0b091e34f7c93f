// Package http provides the HTTP server, its router and the shared middleware.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	auditHTTP "github.com/allisson/escrow/internal/audit/http"
	authHTTP "github.com/allisson/escrow/internal/auth/http"
	authService "github.com/allisson/escrow/internal/auth/service"
	authUseCase "github.com/allisson/escrow/internal/auth/usecase"
	"github.com/allisson/escrow/internal/config"
	escrowDomain "github.com/allisson/escrow/internal/escrow/domain"
	escrowHTTP "github.com/allisson/escrow/internal/escrow/http"
	"github.com/allisson/escrow/internal/metrics"
)

// Server represents the HTTP server.
type Server struct {
	db     *sql.DB
	server *http.Server
	router *gin.Engine
	logger *slog.Logger
}

// NewServer creates a new HTTP server. SetupRouter must be called before Start.
func NewServer(
	db *sql.DB,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter builds the gin engine with every API route.
func (s *Server) SetupRouter(
	cfg *config.Config,
	tokenHandler *authHTTP.TokenHandler,
	secretHandler *escrowHTTP.SecretHandler,
	auditLogHandler *auditHTTP.AuditLogHandler,
	tokenUseCase authUseCase.TokenUseCase,
	tokenService authService.TokenService,
	metricsProvider *metrics.Provider,
	metricsNamespace string,
) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(
			metricsProvider.MeterProvider(), metricsNamespace, escrowDomain.SecretTypeNames(),
		))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/api/v1")

	tokenRoute := []gin.HandlerFunc{}
	if cfg.RateLimitTokenEnabled {
		tokenRoute = append(tokenRoute, authHTTP.TokenRateLimitMiddleware(
			cfg.RateLimitTokenRequestsPerSec,
			cfg.RateLimitTokenBurst,
			s.logger,
		))
	}
	tokenRoute = append(tokenRoute, tokenHandler.IssueTokenHandler)
	v1.POST("/token", tokenRoute...)

	secrets := v1.Group("/secrets/:type")
	secrets.Use(authHTTP.AuthenticationMiddleware(tokenUseCase, tokenService, s.logger))
	if cfg.RateLimitEnabled {
		secrets.Use(authHTTP.RateLimitMiddleware(cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, s.logger))
	}
	{
		secrets.PUT("/targets/:target_id", secretHandler.EscrowHandler)
		secrets.GET("/targets/:target_id", secretHandler.RetrieveHandler)
		secrets.GET("/targets/:target_id/rekey-status", secretHandler.RekeyStatusHandler)
		secrets.PUT("/records/:id/owners", secretHandler.ChangeOwnersHandler)
		secrets.GET("/search", secretHandler.SearchHandler)
		secrets.GET("/logs", auditLogHandler.ListHandler)
	}

	s.router = router
}

// GetHandler returns the configured router, or nil before SetupRouter runs.
func (s *Server) GetHandler() http.Handler {
	if s.router == nil {
		return nil
	}
	return s.router
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return fmt.Errorf("router not configured")
	}
	s.server.Handler = s.router

	return listenAndServe(s.server, s.logger, "http server")
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}
