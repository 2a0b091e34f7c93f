package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/escrow/internal/auth/domain"
	authService "github.com/allisson/escrow/internal/auth/service"
	"github.com/allisson/escrow/internal/database"
)

type clientUseCase struct {
	txManager     database.TxManager
	clientRepo    ClientRepository
	secretService authService.SecretService
	secretTypes   []string
	logger        *slog.Logger
	now           func() time.Time
}

// NewClientUseCase manages clients. secretTypes lists the registered secret types;
// grants naming any other type are rejected.
func NewClientUseCase(
	txManager database.TxManager,
	clientRepo ClientRepository,
	secretService authService.SecretService,
	secretTypes []string,
	logger *slog.Logger,
) ClientUseCase {
	return &clientUseCase{
		txManager:     txManager,
		clientRepo:    clientRepo,
		secretService: secretService,
		secretTypes:   secretTypes,
		logger:        logger,
		now:           time.Now,
	}
}

// normalizeClient trims the principal name and checks every grant names a registered
// type. Nil grants become empty so the stored JSON is always an object.
func (c *clientUseCase) normalizeClient(name string, grants authDomain.Grants) (string, authDomain.Grants, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, authDomain.ErrBlankClientName
	}
	if grants == nil {
		return name, authDomain.Grants{}, nil
	}
	for secretType := range grants {
		if !slices.Contains(c.secretTypes, secretType) {
			return "", nil, fmt.Errorf("%w: %q", authDomain.ErrUnknownGrantType, secretType)
		}
	}
	return name, grants, nil
}

func (c *clientUseCase) Create(
	ctx context.Context,
	createClientInput *authDomain.CreateClientInput,
) (*authDomain.CreateClientOutput, error) {
	name, grants, err := c.normalizeClient(createClientInput.Name, createClientInput.Grants)
	if err != nil {
		return nil, err
	}

	plainSecret, hashedSecret, err := c.secretService.GenerateSecret()
	if err != nil {
		return nil, err
	}

	client := &authDomain.Client{
		ID:        uuid.Must(uuid.NewV7()),
		Secret:    hashedSecret,
		Name:      name,
		IsActive:  createClientInput.IsActive,
		Grants:    grants,
		CreatedAt: c.now().UTC(),
	}
	if err := c.clientRepo.Create(ctx, client); err != nil {
		return nil, err
	}

	c.logger.Info("client created", slog.String("client_id", client.ID.String()), slog.String("name", name))
	return &authDomain.CreateClientOutput{ID: client.ID, PlainSecret: plainSecret}, nil
}

// modify loads a client, applies fn and stores it in one transaction. fn returning
// false skips the write.
func (c *clientUseCase) modify(
	ctx context.Context,
	clientID uuid.UUID,
	fn func(client *authDomain.Client) (bool, error),
) error {
	return c.txManager.WithTx(ctx, func(ctx context.Context) error {
		client, err := c.clientRepo.Get(ctx, clientID)
		if err != nil {
			return err
		}
		changed, err := fn(client)
		if err != nil || !changed {
			return err
		}
		return c.clientRepo.Update(ctx, client)
	})
}

// Update replaces name, status and grants. The secret is kept.
func (c *clientUseCase) Update(
	ctx context.Context,
	clientID uuid.UUID,
	updateClientInput *authDomain.UpdateClientInput,
) error {
	name, grants, err := c.normalizeClient(updateClientInput.Name, updateClientInput.Grants)
	if err != nil {
		return err
	}

	return c.modify(ctx, clientID, func(client *authDomain.Client) (bool, error) {
		client.Name = name
		client.IsActive = updateClientInput.IsActive
		client.Grants = grants
		return true, nil
	})
}

func (c *clientUseCase) Get(ctx context.Context, clientID uuid.UUID) (*authDomain.Client, error) {
	return c.clientRepo.Get(ctx, clientID)
}

func (c *clientUseCase) List(ctx context.Context, offset, limit int) ([]*authDomain.Client, error) {
	return c.clientRepo.List(ctx, offset, limit)
}

// Delete deactivates the client. Deactivating an inactive client is a no-op.
func (c *clientUseCase) Delete(ctx context.Context, clientID uuid.UUID) error {
	return c.modify(ctx, clientID, func(client *authDomain.Client) (bool, error) {
		if !client.IsActive {
			return false, nil
		}
		client.IsActive = false
		return true, nil
	})
}

// Unlock resets the failure counter and lock expiry.
func (c *clientUseCase) Unlock(ctx context.Context, clientID uuid.UUID) error {
	if _, err := c.clientRepo.Get(ctx, clientID); err != nil {
		return err
	}
	if err := c.clientRepo.UpdateLockState(ctx, clientID, 0, nil); err != nil {
		return err
	}
	c.logger.Info("client unlocked", slog.String("client_id", clientID.String()))
	return nil
}
