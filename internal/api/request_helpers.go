package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/tasksync/internal/api/shared"
	"github.com/phrazzld/tasksync/internal/domain"
)

// getPathUUID parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, domain.NewValidationError(paramName, "is required", domain.ErrValidation)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(paramName, "has invalid format", domain.ErrInvalidID)
	}
	return id, nil
}

// requireIdentity returns the caller identity or writes a 401.
func requireIdentity(w http.ResponseWriter, r *http.Request, log *slog.Logger) (domain.Identity, bool) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		log.Warn("identity not found in request context")
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return domain.Identity{}, false
	}
	return identity, true
}

// handleIdentityAndPathUUID extracts the caller identity and a UUID path
// parameter, writing an error response if either is missing or invalid.
func handleIdentityAndPathUUID(
	w http.ResponseWriter,
	r *http.Request,
	paramName string,
	log *slog.Logger,
) (domain.Identity, uuid.UUID, bool) {
	identity, ok := requireIdentity(w, r, log)
	if !ok {
		return domain.Identity{}, uuid.Nil, false
	}

	id, err := getPathUUID(r, paramName)
	if err != nil {
		log.Debug("invalid path parameter",
			slog.String("param_name", paramName),
			slog.String("value", chi.URLParam(r, paramName)))
		HandleAPIError(w, r, err, "")
		return domain.Identity{}, uuid.Nil, false
	}

	return identity, id, true
}

// decodeAndValidate decodes the JSON body into req and validates it,
// writing a 400 on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := shared.DecodeJSON(w, r, req); err != nil {
		HandleAPIError(w, r, err, "")
		return false
	}
	if err := shared.ValidateRequest(req); err != nil {
		HandleAPIError(w, r, err, "")
		return false
	}
	return true
}
