// Package http provides the HTTP handler for reading a secret type's audit log.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	auditDomain "github.com/allisson/escrow/internal/audit/domain"
	"github.com/allisson/escrow/internal/audit/http/dto"
	auditUseCase "github.com/allisson/escrow/internal/audit/usecase"
	authHTTP "github.com/allisson/escrow/internal/auth/http"
	apperrors "github.com/allisson/escrow/internal/errors"
	"github.com/allisson/escrow/internal/httputil"
)

// AuditLogHandler handles HTTP requests for audit log operations.
type AuditLogHandler struct {
	auditLogUseCase auditUseCase.AuditLogUseCase
	logger          *slog.Logger
}

// NewAuditLogHandler creates a new audit log handler with required dependencies.
func NewAuditLogHandler(auditLogUseCase auditUseCase.AuditLogUseCase, logger *slog.Logger) *AuditLogHandler {
	return &AuditLogHandler{
		auditLogUseCase: auditLogUseCase,
		logger:          logger,
	}
}

// ListHandler returns one page of a secret type's audit log, newest first.
// GET /api/v1/secrets/:type/logs?only_errors=&cursor=&limit=
// Requires MASTER on the type. Pass next_cursor back as cursor for the following page.
func (h *AuditLogHandler) ListHandler(c *gin.Context) {
	requester, ok := authHTTP.GetClient(c.Request.Context())
	if !ok || requester == nil {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	cursor, limit, err := httputil.ParseCursorPagination(c, auditDomain.DefaultPageSize, auditDomain.MaxPageSize)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	onlyErrors, err := httputil.ParseBoolQuery(c, "only_errors")
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	out, err := h.auditLogUseCase.List(c.Request.Context(), &auditUseCase.ListInput{
		SecretType: c.Param("type"),
		OnlyErrors: onlyErrors,
		Cursor:     cursor,
		Limit:      limit,
		Requester:  requester,
		IPAddress:  c.ClientIP(),
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapListOutputToResponse(out))
}
