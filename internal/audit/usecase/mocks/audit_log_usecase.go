// Package mocks provides mock implementations of the audit use cases for testing.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	auditDomain "github.com/allisson/escrow/internal/audit/domain"
	auditUseCase "github.com/allisson/escrow/internal/audit/usecase"
)

// MockAuditLogUseCase is a mock implementation of AuditLogUseCase.
type MockAuditLogUseCase struct {
	mock.Mock
}

// Append mocks the Append method of AuditLogUseCase.
func (m *MockAuditLogUseCase) Append(ctx context.Context, entry *auditDomain.AuditLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// List mocks the List method of AuditLogUseCase.
func (m *MockAuditLogUseCase) List(
	ctx context.Context,
	input *auditUseCase.ListInput,
) (*auditUseCase.ListOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auditUseCase.ListOutput), args.Error(1)
}

// VerifyIntegrity mocks the VerifyIntegrity method of AuditLogUseCase.
func (m *MockAuditLogUseCase) VerifyIntegrity(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// VerifyBatch mocks the VerifyBatch method of AuditLogUseCase.
func (m *MockAuditLogUseCase) VerifyBatch(
	ctx context.Context,
	startTime, endTime time.Time,
) (*auditDomain.VerificationReport, error) {
	args := m.Called(ctx, startTime, endTime)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auditDomain.VerificationReport), args.Error(1)
}
