package app

import (
	"database/sql"
	"fmt"

	authDomain "github.com/allisson/escrow/internal/auth/domain"
	authHTTP "github.com/allisson/escrow/internal/auth/http"
	authRepository "github.com/allisson/escrow/internal/auth/repository"
	authService "github.com/allisson/escrow/internal/auth/service"
	authUseCase "github.com/allisson/escrow/internal/auth/usecase"
	escrowDomain "github.com/allisson/escrow/internal/escrow/domain"
)

func (c *Container) SecretService() authService.SecretService {
	return c.secretService.value(authService.NewSecretService)
}

func (c *Container) TokenService() authService.TokenService {
	return c.tokenService.value(authService.NewTokenService)
}

// PermissionEvaluator applies PERMISSION_DEFAULTS_JSON on top of the built-in table.
func (c *Container) PermissionEvaluator() (authService.PermissionEvaluator, error) {
	return c.permissionEvaluator.get(func() (authService.PermissionEvaluator, error) {
		table, err := authDomain.NewPermissionTable(escrowDomain.SecretTypeNames(), c.config.PermissionDefaultsJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to build permission table: %w", err)
		}
		return authService.NewPermissionEvaluator(table), nil
	})
}

func (c *Container) ClientRepository() (authUseCase.ClientRepository, error) {
	return c.clientRepository.get(func() (authUseCase.ClientRepository, error) {
		return repositoryFor(c, "client",
			func(db *sql.DB) authUseCase.ClientRepository { return authRepository.NewPostgreSQLClientRepository(db) },
			func(db *sql.DB) authUseCase.ClientRepository { return authRepository.NewMySQLClientRepository(db) },
		)
	})
}

func (c *Container) TokenRepository() (authUseCase.TokenRepository, error) {
	return c.tokenRepository.get(func() (authUseCase.TokenRepository, error) {
		return repositoryFor(c, "token",
			func(db *sql.DB) authUseCase.TokenRepository { return authRepository.NewPostgreSQLTokenRepository(db) },
			func(db *sql.DB) authUseCase.TokenRepository { return authRepository.NewMySQLTokenRepository(db) },
		)
	})
}

// ClientUseCase validates grant types against the registered secret types.
func (c *Container) ClientUseCase() (authUseCase.ClientUseCase, error) {
	return c.clientUseCase.get(func() (authUseCase.ClientUseCase, error) {
		clients, err := c.ClientRepository()
		if err != nil {
			return nil, fmt.Errorf("failed to get client repository for client use case: %w", err)
		}
		txManager, err := c.TxManager()
		if err != nil {
			return nil, fmt.Errorf("failed to get tx manager for client use case: %w", err)
		}
		base := authUseCase.NewClientUseCase(
			txManager, clients, c.SecretService(), escrowDomain.SecretTypeNames(), c.Logger(),
		)
		return withMetrics(c, base, authUseCase.NewClientUseCaseWithMetrics)
	})
}

func (c *Container) TokenUseCase() (authUseCase.TokenUseCase, error) {
	return c.tokenUseCase.get(func() (authUseCase.TokenUseCase, error) {
		clients, err := c.ClientRepository()
		if err != nil {
			return nil, fmt.Errorf("failed to get client repository for token use case: %w", err)
		}
		tokens, err := c.TokenRepository()
		if err != nil {
			return nil, fmt.Errorf("failed to get token repository for token use case: %w", err)
		}
		base := authUseCase.NewTokenUseCase(
			c.config, clients, tokens, c.SecretService(), c.TokenService(), c.Logger(),
		)
		return withMetrics(c, base, authUseCase.NewTokenUseCaseWithMetrics)
	})
}

func (c *Container) TokenHandler() (*authHTTP.TokenHandler, error) {
	return c.tokenHandler.get(func() (*authHTTP.TokenHandler, error) {
		tokenUseCase, err := c.TokenUseCase()
		if err != nil {
			return nil, fmt.Errorf("failed to get token use case for token handler: %w", err)
		}
		return authHTTP.NewTokenHandler(tokenUseCase, c.Logger()), nil
	})
}
