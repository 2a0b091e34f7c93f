// Package usecase implements client management and bearer token authentication.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/escrow/internal/auth/domain"
)

// ClientRepository defines persistence operations for authentication clients.
// Implementations must support transaction-aware operations via context propagation.
type ClientRepository interface {
	// Create stores a new client in the repository.
	Create(ctx context.Context, client *authDomain.Client) error

	// Update modifies the name, active flag and grants of an existing client.
	Update(ctx context.Context, client *authDomain.Client) error

	// Get retrieves a client by ID. Returns ErrClientNotFound if not found.
	Get(ctx context.Context, clientID uuid.UUID) (*authDomain.Client, error)

	// List returns clients ordered by ID descending.
	List(ctx context.Context, offset, limit int) ([]*authDomain.Client, error)

	// UpdateLockState stores the failed attempt counter and lock expiry of a client.
	UpdateLockState(ctx context.Context, clientID uuid.UUID, failedAttempts int, lockedUntil *time.Time) error
}

// TokenRepository defines persistence operations for authentication tokens.
// Implementations must support transaction-aware operations via context propagation.
type TokenRepository interface {
	// Create stores a new token in the repository.
	Create(ctx context.Context, token *authDomain.Token) error

	// GetByTokenHash retrieves a token by its SHA-256 hash. Returns ErrTokenNotFound if not found.
	GetByTokenHash(ctx context.Context, tokenHash string) (*authDomain.Token, error)

	// DeleteExpired removes tokens that expired before olderThan and returns the count.
	DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error)

	// CountExpired counts tokens that expired before olderThan.
	CountExpired(ctx context.Context, olderThan time.Time) (int64, error)
}

// ClientUseCase defines business logic operations for managing authentication clients.
type ClientUseCase interface {
	// Create generates a new client with a random secret. The plain secret is only
	// returned once; the stored value is an Argon2id hash.
	Create(
		ctx context.Context,
		createClientInput *authDomain.CreateClientInput,
	) (*authDomain.CreateClientOutput, error)

	// Update modifies name, active status and grants. The secret is preserved.
	//
	// Returns ErrClientNotFound if the specified client doesn't exist.
	Update(ctx context.Context, clientID uuid.UUID, updateClientInput *authDomain.UpdateClientInput) error

	// Get retrieves a client by ID.
	Get(ctx context.Context, clientID uuid.UUID) (*authDomain.Client, error)

	// List retrieves clients with pagination support.
	List(ctx context.Context, offset, limit int) ([]*authDomain.Client, error)

	// Delete deactivates a client. Records it escrowed or owns are unaffected.
	Delete(ctx context.Context, clientID uuid.UUID) error

	// Unlock clears the lockout state of a client.
	Unlock(ctx context.Context, clientID uuid.UUID) error
}

// TokenUseCase issues and validates bearer tokens.
type TokenUseCase interface {
	// Issue verifies client credentials and returns a new token. Repeated failures
	// lock the client for the configured duration.
	Issue(
		ctx context.Context,
		issueTokenInput *authDomain.IssueTokenInput,
	) (*authDomain.IssueTokenOutput, error)

	// Authenticate resolves a token hash to its active client.
	Authenticate(ctx context.Context, tokenHash string) (*authDomain.Client, error)

	// CleanupExpired deletes tokens expired for more than days, or only counts them
	// when dryRun is set.
	CleanupExpired(ctx context.Context, days int, dryRun bool) (int64, error)
}
