package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	authDomain "github.com/allisson/escrow/internal/auth/domain"
	authMocks "github.com/allisson/escrow/internal/auth/usecase/mocks"
)

func TestRunUpdateClient(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clientID := uuid.Must(uuid.NewV7())
	existing := &authDomain.Client{
		ID:       clientID,
		Name:     "old@example.com",
		IsActive: true,
		Grants:   authDomain.Grants{"filevault": {authDomain.PermissionRetrieve}},
	}

	tests := []struct {
		name       string
		clientID   string
		grantsJSON string
		stdin      string
		getErr     error
		wantGrants authDomain.Grants
		updateErr  error
		wantErr    error
		wantErrMsg string
		wantOutput []string
	}{
		{
			name:       "FlagGrants",
			clientID:   clientID.String(),
			grantsJSON: `{"filevault":["SEARCH","RETRIEVE"]}`,
			wantGrants: authDomain.Grants{
				"filevault": {authDomain.PermissionRetrieve, authDomain.PermissionSearch},
			},
			wantOutput: []string{"Client updated successfully!", "Name: new@example.com", "Active: false"},
		},
		{
			name:       "PromptShowsCurrentGrants",
			clientID:   clientID.String(),
			stdin:      "luks\nretrieve_own\nn\n",
			wantGrants: authDomain.Grants{"luks": {authDomain.PermissionRetrieveOwn}},
			wantOutput: []string{"Current grants:", "filevault: [RETRIEVE]"},
		},
		{
			name:       "MalformedID",
			clientID:   "not-a-uuid",
			wantErrMsg: "invalid client ID format",
		},
		{
			name:       "ClientMissing",
			clientID:   clientID.String(),
			getErr:     authDomain.ErrClientNotFound,
			wantErr:    authDomain.ErrClientNotFound,
			wantErrMsg: "failed to get existing client",
		},
		{
			name:       "UpdateRejected",
			clientID:   clientID.String(),
			grantsJSON: `{"floppy":["SEARCH"]}`,
			wantGrants: authDomain.Grants{"floppy": {authDomain.PermissionSearch}},
			updateErr:  authDomain.ErrUnknownGrantType,
			wantErr:    authDomain.ErrUnknownGrantType,
			wantErrMsg: "failed to update client",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &authMocks.MockClientUseCase{}
			if tt.clientID == clientID.String() {
				if tt.getErr != nil {
					uc.On("Get", ctx, clientID).Return(nil, tt.getErr).Once()
				} else {
					uc.On("Get", ctx, clientID).Return(existing, nil).Once()
				}
			}
			if tt.wantGrants != nil {
				uc.On("Update", ctx, clientID, &authDomain.UpdateClientInput{
					Name:   "new@example.com",
					Grants: tt.wantGrants,
				}).Return(tt.updateErr).Once()
			}

			var stdout bytes.Buffer
			streams := IOTuple{Reader: strings.NewReader(tt.stdin), Writer: &stdout}
			err := RunUpdateClient(ctx, uc, logger, streams, tt.clientID, "new@example.com", false, tt.grantsJSON, "text")

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorContains(t, err, tt.wantErrMsg)
			case tt.wantErrMsg != "":
				assert.ErrorContains(t, err, tt.wantErrMsg)
			default:
				require.NoError(t, err)
			}
			for _, want := range tt.wantOutput {
				assert.Contains(t, stdout.String(), want)
			}
			uc.AssertExpectations(t)
		})
	}
}

func TestRunUpdateClient_JSONOutput(t *testing.T) {
	ctx := context.Background()
	clientID := uuid.Must(uuid.NewV7())

	uc := &authMocks.MockClientUseCase{}
	uc.On("Get", ctx, clientID).Return(&authDomain.Client{ID: clientID}, nil).Once()
	uc.On("Update", ctx, clientID, mock.AnythingOfType("*domain.UpdateClientInput")).Return(nil).Once()

	var stdout bytes.Buffer
	err := RunUpdateClient(ctx, uc, slog.New(slog.NewTextHandler(io.Discard, nil)), IOTuple{Writer: &stdout},
		clientID.String(), "svc-provisioner", true, `{"provisioning":["ESCROW"]}`, "json")
	require.NoError(t, err)

	var body struct {
		ClientID string              `json:"client_id"`
		Name     string              `json:"name"`
		IsActive bool                `json:"is_active"`
		Grants   map[string][]string `json:"grants"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &body))
	assert.Equal(t, clientID.String(), body.ClientID)
	assert.Equal(t, "svc-provisioner", body.Name)
	assert.True(t, body.IsActive)
	assert.Equal(t, map[string][]string{"provisioning": {"ESCROW"}}, body.Grants)
}

func TestRunListClients(t *testing.T) {
	ctx := context.Background()
	lockedUntil := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clients := []*authDomain.Client{
		{
			ID:       uuid.New(),
			Name:     "alice@example.com",
			IsActive: true,
			Grants:   authDomain.Grants{"filevault": {authDomain.PermissionMaster}},
		},
		{
			ID:          uuid.New(),
			Name:        "bob@example.com",
			IsActive:    false,
			Grants:      authDomain.Grants{},
			LockedUntil: &lockedUntil,
		},
	}

	t.Run("text", func(t *testing.T) {
		mockUseCase := &authMocks.MockClientUseCase{}
		mockUseCase.On("List", ctx, 0, 50).Return(clients, nil)

		var out bytes.Buffer
		require.NoError(t, RunListClients(ctx, mockUseCase, &out, 0, 50, "text"))

		require.Contains(t, out.String(), "alice@example.com  (active)")
		require.Contains(t, out.String(), "filevault: [MASTER]")
		require.Contains(t, out.String(), "bob@example.com  (inactive, locked until 2026-03-01 12:00:00)")
		mockUseCase.AssertExpectations(t)
	})

	t.Run("json", func(t *testing.T) {
		mockUseCase := &authMocks.MockClientUseCase{}
		mockUseCase.On("List", ctx, 10, 5).Return(clients, nil)

		var out bytes.Buffer
		require.NoError(t, RunListClients(ctx, mockUseCase, &out, 10, 5, "json"))

		var result []map[string]interface{}
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		require.Len(t, result, 2)
		require.Equal(t, "alice@example.com", result[0]["name"])
		require.NotContains(t, result[0], "locked_until")
		require.Contains(t, result[1], "locked_until")
	})

	t.Run("error", func(t *testing.T) {
		mockUseCase := &authMocks.MockClientUseCase{}
		mockUseCase.On("List", ctx, 0, 50).Return(nil, errors.New("boom"))

		err := RunListClients(ctx, mockUseCase, &bytes.Buffer{}, 0, 50, "text")
		require.ErrorContains(t, err, "failed to list clients")
	})
}

func TestRunDeactivateAndUnlockClient(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clientID := uuid.New()

	t.Run("deactivate", func(t *testing.T) {
		mockUseCase := &authMocks.MockClientUseCase{}
		mockUseCase.On("Delete", ctx, clientID).Return(nil)

		var out bytes.Buffer
		require.NoError(t, RunDeactivateClient(ctx, mockUseCase, logger, &out, clientID.String()))
		require.Contains(t, out.String(), "deactivated")
		mockUseCase.AssertExpectations(t)
	})

	t.Run("unlock", func(t *testing.T) {
		mockUseCase := &authMocks.MockClientUseCase{}
		mockUseCase.On("Unlock", ctx, clientID).Return(nil)

		var out bytes.Buffer
		require.NoError(t, RunUnlockClient(ctx, mockUseCase, logger, &out, clientID.String()))
		require.Contains(t, out.String(), "unlocked")
		mockUseCase.AssertExpectations(t)
	})

	t.Run("unlock-not-found", func(t *testing.T) {
		mockUseCase := &authMocks.MockClientUseCase{}
		mockUseCase.On("Unlock", ctx, clientID).Return(authDomain.ErrClientNotFound)

		err := RunUnlockClient(ctx, mockUseCase, logger, &bytes.Buffer{}, clientID.String())
		require.ErrorIs(t, err, authDomain.ErrClientNotFound)
	})

	t.Run("invalid-id", func(t *testing.T) {
		mockUseCase := &authMocks.MockClientUseCase{}
		err := RunDeactivateClient(ctx, mockUseCase, logger, &bytes.Buffer{}, "nope")
		require.ErrorContains(t, err, "invalid client ID format")
	})
}
