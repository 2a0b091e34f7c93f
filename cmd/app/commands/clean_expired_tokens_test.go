package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authDomain "github.com/allisson/escrow/internal/auth/domain"
	authMocks "github.com/allisson/escrow/internal/auth/usecase/mocks"
)

func TestRunCleanExpiredTokens(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		days    int
		dryRun  bool
		format  string
		count   int64
		wantOut string
	}{
		{name: "delete text", days: 30, count: 10, format: "text", wantOut: "Deleted 10 token(s) expired before "},
		{name: "dry run text", days: 0, dryRun: true, count: 3, format: "text", wantOut: "3 token(s) expired before "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockUseCase := &authMocks.MockTokenUseCase{}
			mockUseCase.On("CleanupExpired", ctx, tt.days, tt.dryRun).Return(tt.count, nil)

			var out bytes.Buffer
			require.NoError(t, RunCleanExpiredTokens(ctx, mockUseCase, logger, &out, tt.days, tt.dryRun, tt.format))
			assert.Contains(t, out.String(), tt.wantOut)
			mockUseCase.AssertExpectations(t)
		})
	}

	t.Run("json", func(t *testing.T) {
		mockUseCase := &authMocks.MockTokenUseCase{}
		mockUseCase.On("CleanupExpired", ctx, 7, true).Return(int64(5), nil)

		var out bytes.Buffer
		require.NoError(t, RunCleanExpiredTokens(ctx, mockUseCase, logger, &out, 7, true, "json"))

		var result cleanupResult
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		assert.Equal(t, int64(5), result.Count)
		assert.True(t, result.DryRun)
		assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, -7), result.Cutoff, time.Minute)
	})

	t.Run("negative retention", func(t *testing.T) {
		mockUseCase := &authMocks.MockTokenUseCase{}
		mockUseCase.On("CleanupExpired", ctx, -1, false).Return(int64(0), authDomain.ErrInvalidRetention)

		var out bytes.Buffer
		err := RunCleanExpiredTokens(ctx, mockUseCase, logger, &out, -1, false, "text")
		require.ErrorIs(t, err, authDomain.ErrInvalidRetention)
		assert.Empty(t, out.String())
	})
}
