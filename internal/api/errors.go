package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/tasksync/internal/api/shared"
	"github.com/phrazzld/tasksync/internal/domain"
	"github.com/phrazzld/tasksync/internal/service"
	"github.com/phrazzld/tasksync/internal/service/auth"
	"github.com/phrazzld/tasksync/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes so that
// handlers never expose internal error types.
func MapErrorToStatusCode(err error) int {
	var vErr *domain.ValidationError
	var fieldErrs validator.ValidationErrors

	switch {
	case errors.As(err, &vErr), errors.As(err, &fieldErrs),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, shared.ErrEmptyBody),
		errors.Is(err, shared.ErrInvalidJSON):
		return http.StatusBadRequest

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden

	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, store.ErrEmailExists),
		errors.Is(err, service.ErrUserHasTasks),
		errors.Is(err, store.ErrReferenced):
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err that never
// includes internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var vErr *domain.ValidationError
	var fieldErrs validator.ValidationErrors

	switch {
	case errors.As(err, &vErr):
		return fmt.Sprintf("Invalid %s: %s", vErr.Field, vErr.Message)
	case errors.As(err, &fieldErrs):
		return SanitizeValidationError(fieldErrs)
	case errors.Is(err, shared.ErrEmptyBody):
		return "Request body is required"
	case errors.Is(err, shared.ErrInvalidJSON):
		return "Invalid request format"

	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenNotYetValid):
		return "Invalid token"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Invalid credentials"
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, domain.ErrUnauthorized):
		return "Authentication required"

	case errors.Is(err, service.ErrSelfModification):
		return "Cannot delete or demote your own account"
	case errors.Is(err, service.ErrForbidden):
		return "Forbidden"

	// Absent and not-permitted tasks share one message.
	case errors.Is(err, service.ErrTaskNotFound):
		return "Task not found or not permitted"
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, store.ErrUserNotFound):
		return "User not found"

	case errors.Is(err, service.ErrEmailTaken), errors.Is(err, store.ErrEmailExists):
		return "Email already exists"
	case errors.Is(err, service.ErrUserHasTasks), errors.Is(err, store.ErrReferenced):
		return "User still has tasks; reassign or delete them first"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError describes the first failing field of a validator
// error without leaking struct names.
func SanitizeValidationError(errs validator.ValidationErrors) string {
	if len(errs) == 0 {
		return "Validation error"
	}
	fe := errs[0]
	return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "email":
		return "invalid email format"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	case "uuid":
		return "must be a UUID"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the status and safe message for err and logs the
// redacted details. A non-empty fallback replaces the generic message on 5xx.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}

	var opts []shared.ResponseOption
	if status == http.StatusUnauthorized {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}
