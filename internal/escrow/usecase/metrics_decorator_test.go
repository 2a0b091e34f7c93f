package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	escrowDomain "github.com/allisson/escrow/internal/escrow/domain"
	"github.com/allisson/escrow/internal/escrow/usecase"
	usecaseMocks "github.com/allisson/escrow/internal/escrow/usecase/mocks"
)

type mockBusinessMetrics struct {
	mock.Mock
}

func (m *mockBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	m.Called(ctx, domain, operation, status)
}

func (m *mockBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	m.Called(ctx, domain, operation, duration, status)
}

func expectMetrics(m *mockBusinessMetrics, ctx context.Context, operation, status string) {
	m.On("RecordOperation", ctx, "escrow", operation, status).Return().Once()
	m.On("RecordDuration", ctx, "escrow", operation, mock.AnythingOfType("time.Duration"), status).
		Return().
		Once()
}

func TestVersionControllerWithMetrics(t *testing.T) {
	ctx := context.Background()

	t.Run("Escrow success", func(t *testing.T) {
		mockNext := &usecaseMocks.MockVersionController{}
		mockMetrics := &mockBusinessMetrics{}
		uc := usecase.NewVersionControllerWithMetrics(mockNext, mockMetrics)

		input := &escrowDomain.EscrowInput{SecretType: "filevault", TargetID: "V1"}
		record := &escrowDomain.SecretRecord{ID: uuid.New(), Active: true}
		mockNext.On("Escrow", ctx, input).Return(record, nil).Once()
		expectMetrics(mockMetrics, ctx, "secret_escrow", "success")

		res, err := uc.Escrow(ctx, input)
		assert.NoError(t, err)
		assert.Equal(t, record, res)
		mockNext.AssertExpectations(t)
		mockMetrics.AssertExpectations(t)
	})

	t.Run("Escrow duplicate", func(t *testing.T) {
		mockNext := &usecaseMocks.MockVersionController{}
		mockMetrics := &mockBusinessMetrics{}
		uc := usecase.NewVersionControllerWithMetrics(mockNext, mockMetrics)

		input := &escrowDomain.EscrowInput{SecretType: "filevault", TargetID: "V1"}
		mockNext.On("Escrow", ctx, input).Return(nil, escrowDomain.ErrDuplicateSecret).Once()
		expectMetrics(mockMetrics, ctx, "secret_escrow", "duplicate")

		_, err := uc.Escrow(ctx, input)
		assert.ErrorIs(t, err, escrowDomain.ErrDuplicateSecret)
		mockMetrics.AssertExpectations(t)
	})

	t.Run("Retrieve error", func(t *testing.T) {
		mockNext := &usecaseMocks.MockVersionController{}
		mockMetrics := &mockBusinessMetrics{}
		uc := usecase.NewVersionControllerWithMetrics(mockNext, mockMetrics)

		input := &escrowDomain.RetrieveInput{SecretType: "filevault", TargetID: "V1"}
		mockNext.On("Retrieve", ctx, input).Return(nil, escrowDomain.ErrAccessDenied).Once()
		expectMetrics(mockMetrics, ctx, "secret_retrieve", "denied")

		res, err := uc.Retrieve(ctx, input)
		assert.ErrorIs(t, err, escrowDomain.ErrAccessDenied)
		assert.Nil(t, res)
		mockMetrics.AssertExpectations(t)
	})

	t.Run("Patch success", func(t *testing.T) {
		mockNext := &usecaseMocks.MockVersionController{}
		mockMetrics := &mockBusinessMetrics{}
		uc := usecase.NewVersionControllerWithMetrics(mockNext, mockMetrics)

		id := uuid.New()
		rekey := true
		fields := escrowDomain.MutableFields{ForceRekeying: &rekey}
		mockNext.On("Patch", ctx, id, fields).Return(nil).Once()
		expectMetrics(mockMetrics, ctx, "secret_patch", "success")

		assert.NoError(t, uc.Patch(ctx, id, fields))
		mockMetrics.AssertExpectations(t)
	})

	t.Run("ChangeOwners success", func(t *testing.T) {
		mockNext := &usecaseMocks.MockVersionController{}
		mockMetrics := &mockBusinessMetrics{}
		uc := usecase.NewVersionControllerWithMetrics(mockNext, mockMetrics)

		input := &escrowDomain.ChangeOwnersInput{SecretType: "filevault", RecordID: uuid.New()}
		mockNext.On("ChangeOwners", ctx, input).Return(true, nil).Once()
		expectMetrics(mockMetrics, ctx, "secret_change_owners", "success")

		changed, err := uc.ChangeOwners(ctx, input)
		assert.NoError(t, err)
		assert.True(t, changed)
		mockMetrics.AssertExpectations(t)
	})

	t.Run("RekeyStatus success", func(t *testing.T) {
		mockNext := &usecaseMocks.MockVersionController{}
		mockMetrics := &mockBusinessMetrics{}
		uc := usecase.NewVersionControllerWithMetrics(mockNext, mockMetrics)

		input := &escrowDomain.RekeyStatusInput{SecretType: "filevault", TargetID: "V1"}
		mockNext.On("RekeyStatus", ctx, input).Return(true, nil).Once()
		expectMetrics(mockMetrics, ctx, "secret_rekey_status", "success")

		rekey, err := uc.RekeyStatus(ctx, input)
		assert.NoError(t, err)
		assert.True(t, rekey)
		mockMetrics.AssertExpectations(t)
	})

	t.Run("Search error", func(t *testing.T) {
		mockNext := &usecaseMocks.MockVersionController{}
		mockMetrics := &mockBusinessMetrics{}
		uc := usecase.NewVersionControllerWithMetrics(mockNext, mockMetrics)

		input := &escrowDomain.SearchInput{SecretType: "filevault", Field: "hostname", Value: "mac"}
		mockNext.On("Search", ctx, input).Return(nil, errors.New("boom")).Once()
		expectMetrics(mockMetrics, ctx, "secret_search", "error")

		_, err := uc.Search(ctx, input)
		assert.Error(t, err)
		mockMetrics.AssertExpectations(t)
	})
}
