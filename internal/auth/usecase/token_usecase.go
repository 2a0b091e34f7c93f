package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/escrow/internal/auth/domain"
	authService "github.com/allisson/escrow/internal/auth/service"
	"github.com/allisson/escrow/internal/config"
)

type tokenUseCase struct {
	config        *config.Config
	clientRepo    ClientRepository
	tokenRepo     TokenRepository
	secretService authService.SecretService
	tokenService  authService.TokenService
	logger        *slog.Logger
	now           func() time.Time
}

func NewTokenUseCase(
	config *config.Config,
	clientRepo ClientRepository,
	tokenRepo TokenRepository,
	secretService authService.SecretService,
	tokenService authService.TokenService,
	logger *slog.Logger,
) TokenUseCase {
	return &tokenUseCase{
		config:        config,
		clientRepo:    clientRepo,
		tokenRepo:     tokenRepo,
		secretService: secretService,
		tokenService:  tokenService,
		logger:        logger,
		now:           time.Now,
	}
}

// Issue exchanges client credentials for a bearer token.
//
// An unknown client and a wrong secret are indistinguishable to the caller. Each wrong
// secret counts toward LockoutMaxAttempts; once reached the client is refused, right
// secret or not, until LockoutDuration has passed. Success clears the counter.
func (t *tokenUseCase) Issue(
	ctx context.Context,
	in *authDomain.IssueTokenInput,
) (*authDomain.IssueTokenOutput, error) {
	now := t.now().UTC()

	client, err := t.client(ctx, in.ClientID)
	if err != nil {
		return nil, err
	}
	switch {
	case client.IsLocked(now):
		return nil, authDomain.ErrClientLocked
	case !client.IsActive:
		return nil, authDomain.ErrClientInactive
	case !t.secretService.CompareSecret(in.ClientSecret, client.Secret):
		if err := t.recordFailure(ctx, client, now); err != nil {
			return nil, err
		}
		return nil, authDomain.ErrInvalidCredentials
	}

	if client.FailedAttempts > 0 || client.LockedUntil != nil {
		if err := t.clientRepo.UpdateLockState(ctx, client.ID, 0, nil); err != nil {
			return nil, err
		}
	}

	plain, hash, err := t.tokenService.GenerateToken()
	if err != nil {
		return nil, err
	}
	token := &authDomain.Token{
		ID:        uuid.Must(uuid.NewV7()),
		TokenHash: hash,
		ClientID:  client.ID,
		ExpiresAt: now.Add(t.config.AuthTokenExpiration),
		CreatedAt: now,
	}
	if err := t.tokenRepo.Create(ctx, token); err != nil {
		return nil, err
	}
	return &authDomain.IssueTokenOutput{PlainToken: plain, ExpiresAt: token.ExpiresAt}, nil
}

// recordFailure bumps the failure counter, converting it into a lock when the limit is
// hit. A zero LockoutMaxAttempts disables locking.
func (t *tokenUseCase) recordFailure(ctx context.Context, client *authDomain.Client, now time.Time) error {
	attempts := client.FailedAttempts + 1
	limit := t.config.LockoutMaxAttempts
	if limit <= 0 || attempts < limit {
		return t.clientRepo.UpdateLockState(ctx, client.ID, attempts, nil)
	}

	until := now.Add(t.config.LockoutDuration)
	t.logger.Warn("client locked after repeated authentication failures",
		slog.String("client_id", client.ID.String()),
		slog.Int("attempts", attempts),
		slog.Time("locked_until", until),
	)
	return t.clientRepo.UpdateLockState(ctx, client.ID, 0, &until)
}

// Authenticate resolves a token hash to its active client. Missing, expired and revoked
// tokens all read as bad credentials.
func (t *tokenUseCase) Authenticate(ctx context.Context, tokenHash string) (*authDomain.Client, error) {
	token, err := t.tokenRepo.GetByTokenHash(ctx, tokenHash)
	if errors.Is(err, authDomain.ErrTokenNotFound) {
		return nil, authDomain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !token.IsValid(t.now().UTC()) {
		return nil, authDomain.ErrInvalidCredentials
	}

	client, err := t.client(ctx, token.ClientID)
	if err != nil {
		return nil, err
	}
	if !client.IsActive {
		return nil, authDomain.ErrClientInactive
	}
	return client, nil
}

// client loads a client, hiding whether the id exists.
func (t *tokenUseCase) client(ctx context.Context, id uuid.UUID) (*authDomain.Client, error) {
	client, err := t.clientRepo.Get(ctx, id)
	if errors.Is(err, authDomain.ErrClientNotFound) {
		return nil, authDomain.ErrInvalidCredentials
	}
	return client, err
}

// CleanupExpired deletes, or with dryRun only counts, tokens expired more than days ago.
func (t *tokenUseCase) CleanupExpired(ctx context.Context, days int, dryRun bool) (int64, error) {
	if days < 0 {
		return 0, authDomain.ErrInvalidRetention
	}
	olderThan := t.now().UTC().AddDate(0, 0, -days)
	if dryRun {
		return t.tokenRepo.CountExpired(ctx, olderThan)
	}
	return t.tokenRepo.DeleteExpired(ctx, olderThan)
}
