package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/tasksync/internal/api/shared"
	"github.com/phrazzld/tasksync/internal/platform/logger"
	"github.com/phrazzld/tasksync/internal/service"
)

// UserHandler serves the admin user directory and the caller's own profile.
type UserHandler struct {
	users  service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users service.UserService, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{
		users:  users,
		logger: logger.With(slog.String("component", "user_handler")),
	}
}

// ListUsers handles GET /api/users.
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list users")
		return
	}

	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userToResponse(u))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, out)
}

// GetUser handles GET /api/users/{id}.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	_, userID, ok := handleIdentityAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	user, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get user")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, userToResponse(user))
}

// GetProfile handles GET /api/users/profile/me for any authenticated caller.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	identity, ok := requireIdentity(w, r, log)
	if !ok {
		return
	}

	user, err := h.users.GetUser(r.Context(), identity.ID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get profile")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, userToResponse(user))
}

// UpdateUser handles PUT /api/users/{id}.
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	identity, userID, ok := handleIdentityAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	user, err := h.users.UpdateUser(r.Context(), identity, userID, patch)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update user")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, userToResponse(user))
}

// DeleteUser handles DELETE /api/users/{id}.
// A user still referenced by tasks is refused with 409.
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	identity, userID, ok := handleIdentityAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	if err := h.users.DeleteUser(r.Context(), identity, userID); err != nil {
		HandleAPIError(w, r, err, "Failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
