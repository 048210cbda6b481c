package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/tasksync/internal/api/shared"
	"github.com/phrazzld/tasksync/internal/domain"
	"github.com/phrazzld/tasksync/internal/platform/logger"
	"github.com/phrazzld/tasksync/internal/service"
	"github.com/phrazzld/tasksync/internal/service/auth"
)

// AuthHandler handles registration and login.
type AuthHandler struct {
	users         service.UserService
	jwtService    auth.JWTService
	tokenLifetime time.Duration
	logger        *slog.Logger
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(
	users service.UserService,
	jwtService auth.JWTService,
	tokenLifetime time.Duration,
	logger *slog.Logger,
) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		users:         users,
		jwtService:    jwtService,
		tokenLifetime: tokenLifetime,
		logger:        logger.With(slog.String("component", "auth_handler")),
	}
}

// Register handles POST /api/auth/register. Self-registered users are
// always members; admins are seeded.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.users.Register(r.Context(), req.Name, req.Email, req.Password, domain.RoleMember)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create user")
		return
	}

	h.respondWithToken(w, r, http.StatusCreated, user)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to authenticate user")
		return
	}

	h.respondWithToken(w, r, http.StatusOK, user)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, user *domain.User) {
	token, err := h.jwtService.GenerateToken(r.Context(), user.ID, user.Role)
	if err != nil {
		logger.FromContextOrDefault(r.Context(), h.logger).Error("failed to generate token",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to generate authentication token")
		return
	}

	shared.RespondWithJSON(w, r, status, AuthResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.tokenLifetime).UTC().Format(time.RFC3339),
		User:      userToResponse(user),
	})
}
