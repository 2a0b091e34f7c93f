package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	authDomain "github.com/allisson/escrow/internal/auth/domain"
	"github.com/allisson/escrow/internal/auth/usecase/mocks"
)

type clientUseCaseFixture struct {
	uc            ClientUseCase
	txManager     *mocks.MockTxManager
	clientRepo    *mocks.MockClientRepository
	secretService *mocks.MockSecretService
}

func newClientUseCaseFixture(t *testing.T) clientUseCaseFixture {
	t.Helper()
	f := clientUseCaseFixture{
		txManager:     &mocks.MockTxManager{},
		clientRepo:    &mocks.MockClientRepository{},
		secretService: &mocks.MockSecretService{},
	}
	f.uc = NewClientUseCase(
		f.txManager,
		f.clientRepo,
		f.secretService,
		[]string{"filevault", "luks", "provisioning"},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	t.Cleanup(func() {
		f.clientRepo.AssertExpectations(t)
		f.secretService.AssertExpectations(t)
		f.txManager.AssertExpectations(t)
	})
	return f
}

func TestClientUseCase_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_WithGrants", func(t *testing.T) {
		f := newClientUseCaseFixture(t)

		f.secretService.On("GenerateSecret").Return("plain-secret", "hashed-secret", nil).Once()
		f.clientRepo.On("Create", ctx, mock.MatchedBy(func(c *authDomain.Client) bool {
			return c.Name == "alice@example.com" &&
				c.Secret == "hashed-secret" &&
				c.IsActive &&
				c.Grants.Has("filevault", authDomain.PermissionRetrieve) &&
				c.ID != uuid.Nil &&
				!c.CreatedAt.IsZero()
		})).Return(nil).Once()

		out, err := f.uc.Create(ctx, &authDomain.CreateClientInput{
			Name:     "  alice@example.com ",
			IsActive: true,
			Grants:   authDomain.Grants{"filevault": {authDomain.PermissionRetrieve}},
		})
		require.NoError(t, err)
		assert.Equal(t, "plain-secret", out.PlainSecret)
		assert.NotEqual(t, uuid.Nil, out.ID)
	})

	t.Run("Success_NilGrantsBecomeEmpty", func(t *testing.T) {
		f := newClientUseCaseFixture(t)

		f.secretService.On("GenerateSecret").Return("plain", "hashed", nil).Once()
		f.clientRepo.On("Create", ctx, mock.MatchedBy(func(c *authDomain.Client) bool {
			return c.Grants != nil && len(c.Grants) == 0
		})).Return(nil).Once()

		_, err := f.uc.Create(ctx, &authDomain.CreateClientInput{Name: "bob"})
		require.NoError(t, err)
	})

	t.Run("Error_UnregisteredGrantType", func(t *testing.T) {
		f := newClientUseCaseFixture(t)

		_, err := f.uc.Create(ctx, &authDomain.CreateClientInput{
			Name:   "bob",
			Grants: authDomain.Grants{"floppy": {authDomain.PermissionSearch}},
		})
		assert.ErrorIs(t, err, authDomain.ErrUnknownGrantType)
		assert.ErrorContains(t, err, `"floppy"`)
	})

	t.Run("Error_BlankName", func(t *testing.T) {
		f := newClientUseCaseFixture(t)

		_, err := f.uc.Create(ctx, &authDomain.CreateClientInput{Name: "   "})
		assert.ErrorIs(t, err, authDomain.ErrBlankClientName)
	})

	t.Run("Error_GenerateSecret", func(t *testing.T) {
		f := newClientUseCaseFixture(t)

		genErr := errors.New("entropy exhausted")
		f.secretService.On("GenerateSecret").Return("", "", genErr).Once()

		out, err := f.uc.Create(ctx, &authDomain.CreateClientInput{Name: "bob"})
		assert.Nil(t, out)
		assert.ErrorIs(t, err, genErr)
	})

	t.Run("Error_Repository", func(t *testing.T) {
		f := newClientUseCaseFixture(t)

		dbErr := errors.New("database error")
		f.secretService.On("GenerateSecret").Return("plain", "hashed", nil).Once()
		f.clientRepo.On("Create", ctx, mock.Anything).Return(dbErr).Once()

		out, err := f.uc.Create(ctx, &authDomain.CreateClientInput{Name: "bob"})
		assert.Nil(t, out)
		assert.ErrorIs(t, err, dbErr)
	})
}

func TestClientUseCase_Update(t *testing.T) {
	ctx := context.Background()
	clientID := uuid.Must(uuid.NewV7())

	t.Run("Success", func(t *testing.T) {
		f := newClientUseCaseFixture(t)

		existing := &authDomain.Client{ID: clientID, Name: "old", Secret: "hash", IsActive: true, Grants: authDomain.Grants{}}
		f.txManager.On("WithTx", ctx).Return(nil).Once()
		f.clientRepo.On("Get", ctx, clientID).Return(existing, nil).Once()
		f.clientRepo.On("Update", ctx, mock.MatchedBy(func(c *authDomain.Client) bool {
			return c.Name == "new" && !c.IsActive && c.Secret == "hash" &&
				c.Grants.Has("luks", authDomain.PermissionSearch)
		})).Return(nil).Once()

		err := f.uc.Update(ctx, clientID, &authDomain.UpdateClientInput{
			Name:   "new",
			Grants: authDomain.Grants{"luks": {authDomain.PermissionSearch}},
		})
		require.NoError(t, err)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		f := newClientUseCaseFixture(t)

		f.txManager.On("WithTx", ctx).Return(nil).Once()
		f.clientRepo.On("Get", ctx, clientID).Return(nil, authDomain.ErrClientNotFound).Once()

		err := f.uc.Update(ctx, clientID, &authDomain.UpdateClientInput{Name: "new"})
		assert.ErrorIs(t, err, authDomain.ErrClientNotFound)
	})

	t.Run("Error_UnregisteredGrantTypeSkipsTransaction", func(t *testing.T) {
		f := newClientUseCaseFixture(t)

		err := f.uc.Update(ctx, clientID, &authDomain.UpdateClientInput{
			Name:   "new",
			Grants: authDomain.Grants{"floppy": {authDomain.PermissionSearch}},
		})
		assert.ErrorIs(t, err, authDomain.ErrUnknownGrantType)
	})

	t.Run("Error_BeginTransaction", func(t *testing.T) {
		f := newClientUseCaseFixture(t)

		txErr := errors.New("failed to begin transaction")
		f.txManager.On("WithTx", ctx).Return(txErr).Once()

		err := f.uc.Update(ctx, clientID, &authDomain.UpdateClientInput{Name: "new"})
		assert.ErrorIs(t, err, txErr)
	})
}

func TestClientUseCase_GetAndList(t *testing.T) {
	ctx := context.Background()
	f := newClientUseCaseFixture(t)

	client := &authDomain.Client{ID: uuid.Must(uuid.NewV7()), Name: "alice"}
	f.clientRepo.On("Get", ctx, client.ID).Return(client, nil).Once()
	f.clientRepo.On("List", ctx, 0, 50).Return([]*authDomain.Client{client}, nil).Once()

	got, err := f.uc.Get(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, client, got)

	list, err := f.uc.List(ctx, 0, 50)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestClientUseCase_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("Deactivates", func(t *testing.T) {
		f := newClientUseCaseFixture(t)

		client := &authDomain.Client{ID: uuid.Must(uuid.NewV7()), Name: "alice", IsActive: true}
		f.txManager.On("WithTx", ctx).Return(nil).Once()
		f.clientRepo.On("Get", ctx, client.ID).Return(client, nil).Once()
		f.clientRepo.On("Update", ctx, mock.MatchedBy(func(c *authDomain.Client) bool {
			return !c.IsActive
		})).Return(nil).Once()

		require.NoError(t, f.uc.Delete(ctx, client.ID))
	})

	t.Run("AlreadyInactiveIsNoOp", func(t *testing.T) {
		f := newClientUseCaseFixture(t)

		client := &authDomain.Client{ID: uuid.Must(uuid.NewV7()), Name: "alice"}
		f.txManager.On("WithTx", ctx).Return(nil).Once()
		f.clientRepo.On("Get", ctx, client.ID).Return(client, nil).Once()

		require.NoError(t, f.uc.Delete(ctx, client.ID))
		f.clientRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestClientUseCase_Unlock(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newClientUseCaseFixture(t)

		lockedUntil := time.Now().Add(time.Hour)
		client := &authDomain.Client{ID: uuid.Must(uuid.NewV7()), LockedUntil: &lockedUntil, FailedAttempts: 2}
		f.clientRepo.On("Get", ctx, client.ID).Return(client, nil).Once()
		f.clientRepo.On("UpdateLockState", ctx, client.ID, 0, (*time.Time)(nil)).Return(nil).Once()

		require.NoError(t, f.uc.Unlock(ctx, client.ID))
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		f := newClientUseCaseFixture(t)

		clientID := uuid.Must(uuid.NewV7())
		f.clientRepo.On("Get", ctx, clientID).Return(nil, authDomain.ErrClientNotFound).Once()

		assert.ErrorIs(t, f.uc.Unlock(ctx, clientID), authDomain.ErrClientNotFound)
	})
}
