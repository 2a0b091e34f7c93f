package http

import (
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	authService "github.com/allisson/escrow/internal/auth/service"
	authUseCase "github.com/allisson/escrow/internal/auth/usecase"
	apperrors "github.com/allisson/escrow/internal/errors"
	"github.com/allisson/escrow/internal/httputil"
)

// AuthenticationMiddleware authenticates requests with a Bearer token.
//
// The token is hashed and resolved through TokenUseCase.Authenticate; the resulting
// client is stored in the request context for GetClient. Authorization is not decided
// here: permissions depend on the secret type and are evaluated by the use cases.
//
// Error handling:
//   - Missing or malformed Authorization header, or a token without TokenPrefix → 401 Unauthorized
//   - Invalid, expired or revoked token → 401 Unauthorized
//   - Inactive client → 403 Forbidden
//   - Other errors → 500 Internal Server Error
func AuthenticationMiddleware(
	tokenUseCase authUseCase.TokenUseCase,
	tokenService authService.TokenService,
	logger *slog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.Debug("authentication failed: missing authorization header")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		// Case-insensitive "Bearer " prefix
		const bearerPrefix = "bearer "
		if len(authHeader) < len(bearerPrefix) ||
			!strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
			logger.Debug("authentication failed: malformed authorization header")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		plainToken := strings.TrimSpace(authHeader[len(bearerPrefix):])
		if !authService.HasTokenPrefix(plainToken) {
			logger.Debug("authentication failed: not an escrow token")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		client, err := tokenUseCase.Authenticate(c.Request.Context(), tokenService.HashToken(plainToken))
		if err != nil {
			logger.Debug("authentication failed", slog.String("error", err.Error()))
			httputil.HandleErrorGin(c, err, logger)
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(WithClient(c.Request.Context(), client))

		logger.Debug("authentication successful",
			slog.String("client_id", client.ID.String()),
			slog.String("principal", client.PrincipalID()))

		c.Next()
	}
}
