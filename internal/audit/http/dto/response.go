// Package dto provides data transfer objects for the audit log HTTP API.
package dto

import (
	"time"

	auditDomain "github.com/allisson/escrow/internal/audit/domain"
	auditUseCase "github.com/allisson/escrow/internal/audit/usecase"
)

// AuditLogResponse represents an audit log entry in API responses.
type AuditLogResponse struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	SecretType string    `json:"secret_type"`
	Principal  string    `json:"principal"`
	Message    string    `json:"message"`
	Successful bool      `json:"successful"`
	RecordID   string    `json:"record_id,omitempty"`
	TargetID   string    `json:"target_id,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	Query      string    `json:"query,omitempty"`
	Key        string    `json:"key"`
}

// MapAuditLogToResponse converts a domain audit log to an API response.
func MapAuditLogToResponse(log *auditDomain.AuditLog) AuditLogResponse {
	response := AuditLogResponse{
		ID:         log.ID.String(),
		CreatedAt:  log.CreatedAt,
		SecretType: log.SecretType,
		Principal:  log.Principal,
		Message:    log.Message,
		Successful: log.Successful,
		TargetID:   log.TargetID,
		IPAddress:  log.IPAddress,
		Query:      log.Query,
		Key:        log.PaginationKey(),
	}
	if log.RecordID != nil {
		response.RecordID = log.RecordID.String()
	}
	return response
}

// ListAuditLogsResponse is one page of entries, newest first. NextCursor is omitted on
// the last page.
type ListAuditLogsResponse struct {
	Data       []AuditLogResponse `json:"data"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

// MapListOutputToResponse converts a page to an API response.
func MapListOutputToResponse(out *auditUseCase.ListOutput) ListAuditLogsResponse {
	data := make([]AuditLogResponse, 0, len(out.Logs))
	for _, log := range out.Logs {
		data = append(data, MapAuditLogToResponse(log))
	}
	return ListAuditLogsResponse{Data: data, NextCursor: out.NextCursor}
}
