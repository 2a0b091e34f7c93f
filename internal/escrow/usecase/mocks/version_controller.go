// Package mocks provides mock implementations of the escrow use cases for testing.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	escrowDomain "github.com/allisson/escrow/internal/escrow/domain"
)

// MockVersionController is a mock implementation of VersionController.
type MockVersionController struct {
	mock.Mock
}

// Escrow mocks the Escrow method of VersionController.
func (m *MockVersionController) Escrow(
	ctx context.Context,
	input *escrowDomain.EscrowInput,
) (*escrowDomain.SecretRecord, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*escrowDomain.SecretRecord), args.Error(1)
}

// Retrieve mocks the Retrieve method of VersionController.
func (m *MockVersionController) Retrieve(
	ctx context.Context,
	input *escrowDomain.RetrieveInput,
) (*escrowDomain.RetrieveOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*escrowDomain.RetrieveOutput), args.Error(1)
}

// Patch mocks the Patch method of VersionController.
func (m *MockVersionController) Patch(ctx context.Context, recordID uuid.UUID, fields escrowDomain.MutableFields) error {
	args := m.Called(ctx, recordID, fields)
	return args.Error(0)
}

// ChangeOwners mocks the ChangeOwners method of VersionController.
func (m *MockVersionController) ChangeOwners(ctx context.Context, input *escrowDomain.ChangeOwnersInput) (bool, error) {
	args := m.Called(ctx, input)
	return args.Bool(0), args.Error(1)
}

// RekeyStatus mocks the RekeyStatus method of VersionController.
func (m *MockVersionController) RekeyStatus(ctx context.Context, input *escrowDomain.RekeyStatusInput) (bool, error) {
	args := m.Called(ctx, input)
	return args.Bool(0), args.Error(1)
}

// Search mocks the Search method of VersionController.
func (m *MockVersionController) Search(
	ctx context.Context,
	input *escrowDomain.SearchInput,
) ([]*escrowDomain.SecretRecord, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*escrowDomain.SecretRecord), args.Error(1)
}
