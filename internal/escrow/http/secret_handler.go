// Package http provides the HTTP handlers of the escrow API: uploading secret versions,
// retrieving the active version, changing owners, rekey status and search.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	authDomain "github.com/allisson/escrow/internal/auth/domain"
	authHTTP "github.com/allisson/escrow/internal/auth/http"
	cryptoDomain "github.com/allisson/escrow/internal/crypto/domain"
	apperrors "github.com/allisson/escrow/internal/errors"
	escrowDomain "github.com/allisson/escrow/internal/escrow/domain"
	"github.com/allisson/escrow/internal/escrow/http/dto"
	escrowUseCase "github.com/allisson/escrow/internal/escrow/usecase"
	"github.com/allisson/escrow/internal/httputil"
	customValidation "github.com/allisson/escrow/internal/validation"
)

// SecretHandler serves the escrow endpoints. Every route runs behind the
// authentication middleware, which places the requesting client in the context.
type SecretHandler struct {
	versionController escrowUseCase.VersionController
	logger            *slog.Logger
}

// NewSecretHandler creates a new secret handler.
func NewSecretHandler(versionController escrowUseCase.VersionController, logger *slog.Logger) *SecretHandler {
	return &SecretHandler{
		versionController: versionController,
		logger:            logger,
	}
}

func (h *SecretHandler) requester(c *gin.Context) (*authDomain.Client, bool) {
	client, ok := authHTTP.GetClient(c.Request.Context())
	if !ok || client == nil {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return nil, false
	}
	return client, true
}

// EscrowHandler stores a new version of a secret.
// PUT /api/v1/secrets/:type/targets/:target_id?tag=
// Returns 200 with the stored record, or {"duplicate": true} when the value is
// already the active version.
func (h *SecretHandler) EscrowHandler(c *gin.Context) {
	requester, ok := h.requester(c)
	if !ok {
		return
	}

	var req dto.EscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	input := &escrowDomain.EscrowInput{
		SecretType: c.Param("type"),
		TargetID:   c.Param("target_id"),
		Tag:        c.Query("tag"),
		Plaintext:  []byte(req.Secret),
		Hostname:   req.Hostname,
		Owners:     req.Owners,
		Metadata:   req.Metadata,
		Requester:  requester,
		IPAddress:  c.ClientIP(),
	}
	if req.Created != nil {
		input.Created = req.Created.UTC()
	}
	defer cryptoDomain.Zero(input.Plaintext)

	record, err := h.versionController.Escrow(c.Request.Context(), input)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrDuplicate) {
			c.JSON(http.StatusOK, dto.EscrowResponse{Duplicate: true})
			return
		}
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRecordToEscrowResponse(record))
}

// RetrieveHandler returns the active secret of a target, or the record named by id.
// GET /api/v1/secrets/:type/targets/:target_id?tag=&id=
// The body is prefixed with httputil.XSSIPrefix.
func (h *SecretHandler) RetrieveHandler(c *gin.Context) {
	requester, ok := h.requester(c)
	if !ok {
		return
	}

	secretType, err := escrowDomain.LookupSecretType(c.Param("type"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	input := &escrowDomain.RetrieveInput{
		SecretType: secretType.Name,
		TargetID:   c.Param("target_id"),
		Tag:        c.Query("tag"),
		Requester:  requester,
		IPAddress:  c.ClientIP(),
		Query:      c.Request.URL.RawQuery,
	}
	if rawID := c.Query("id"); rawID != "" {
		recordID, err := uuid.Parse(rawID)
		if err != nil {
			httputil.HandleBadRequestGin(c, fmt.Errorf("invalid id parameter: %w", err), h.logger)
			return
		}
		input.RecordID = &recordID
	}

	out, err := h.versionController.Retrieve(c.Request.Context(), input)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	defer cryptoDomain.Zero(out.Plaintext)

	httputil.PrefixedJSON(c, http.StatusOK, dto.MapRetrieveToResponse(secretType, out))
}

// ChangeOwnersHandler replaces the owners of an active record.
// PUT /api/v1/secrets/:type/records/:id/owners
func (h *SecretHandler) ChangeOwnersHandler(c *gin.Context) {
	requester, ok := h.requester(c)
	if !ok {
		return
	}

	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid record id: %w", err), h.logger)
		return
	}

	var req dto.ChangeOwnersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	changed, err := h.versionController.ChangeOwners(c.Request.Context(), &escrowDomain.ChangeOwnersInput{
		SecretType: c.Param("type"),
		RecordID:   recordID,
		NewOwners:  req.Owners,
		Requester:  requester,
		IPAddress:  c.ClientIP(),
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.ChangeOwnersResponse{Changed: changed})
}

// RekeyStatusHandler reports whether the target's secret must be rotated.
// GET /api/v1/secrets/:type/targets/:target_id/rekey-status?tag=
func (h *SecretHandler) RekeyStatusHandler(c *gin.Context) {
	requester, ok := h.requester(c)
	if !ok {
		return
	}

	rekey, err := h.versionController.RekeyStatus(c.Request.Context(), &escrowDomain.RekeyStatusInput{
		SecretType: c.Param("type"),
		TargetID:   c.Param("target_id"),
		Tag:        c.Query("tag"),
		Requester:  requester,
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.RekeyStatusResponse{RekeyNeeded: rekey})
}

// SearchHandler finds records of a type by column or metadata value.
// GET /api/v1/secrets/:type/search?field=&value=&prefix=&tag=
func (h *SecretHandler) SearchHandler(c *gin.Context) {
	requester, ok := h.requester(c)
	if !ok {
		return
	}

	prefix, err := httputil.ParseBoolQuery(c, "prefix")
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	records, err := h.versionController.Search(c.Request.Context(), &escrowDomain.SearchInput{
		SecretType: c.Param("type"),
		Field:      c.Query("field"),
		Value:      c.Query("value"),
		Prefix:     prefix,
		Tag:        c.Query("tag"),
		Requester:  requester,
		IPAddress:  c.ClientIP(),
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRecordsToSearchResponse(records))
}
