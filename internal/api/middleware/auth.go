package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/tasksync/internal/api/shared"
	"github.com/phrazzld/tasksync/internal/domain"
	"github.com/phrazzld/tasksync/internal/platform/logger"
	"github.com/phrazzld/tasksync/internal/redact"
	"github.com/phrazzld/tasksync/internal/service/auth"
)

// ErrInvalidAuthFormat is returned when the Authorization header is not a Bearer token.
var ErrInvalidAuthFormat = errors.New("invalid authorization format")

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", auth.ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrInvalidAuthFormat
	}
	return strings.TrimSpace(token), nil
}

// AuthMiddleware provides JWT authentication for routes.
type AuthMiddleware struct {
	jwtService auth.JWTService
	logger     *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
func NewAuthMiddleware(jwtService auth.JWTService, logger *slog.Logger) *AuthMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthMiddleware{
		jwtService: jwtService,
		logger:     logger.With(slog.String("component", "auth_middleware")),
	}
}

// Authenticate validates the Bearer token and stores the verified identity
// in the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := BearerToken(r)
		if err != nil {
			if errors.Is(err, auth.ErrMissingToken) {
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
				return
			}
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid authorization format")
			return
		}

		claims, err := m.jwtService.ValidateToken(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Token expired")
			case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenNotYetValid):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid token")
			default:
				logger.FromContextOrDefault(r.Context(), m.logger).
					Error("failed to validate token", slog.String("error", redact.Error(err)))
				shared.RespondWithError(w, r, http.StatusInternalServerError, "Authentication error")
			}
			return
		}

		identity := claims.Identity()
		ctx := shared.WithIdentity(r.Context(), identity)
		log := logger.FromContextOrDefault(ctx, m.logger)
		ctx = logger.WithLogger(ctx, log.With(slog.String("user_id", identity.ID.String())))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects requests whose identity does not hold one of roles.
// It must run after Authenticate.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := shared.IdentityFromContext(r.Context())
			if !ok {
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}
			for _, role := range roles {
				if identity.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			shared.RespondWithError(w, r, http.StatusForbidden, "Forbidden")
		})
	}
}
