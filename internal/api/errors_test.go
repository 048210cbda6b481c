package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/tasksync/internal/api/shared"
	"github.com/phrazzld/tasksync/internal/domain"
	"github.com/phrazzld/tasksync/internal/platform/logger"
	"github.com/phrazzld/tasksync/internal/service"
	"github.com/phrazzld/tasksync/internal/service/auth"
	"github.com/phrazzld/tasksync/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", domain.NewValidationError("title", "is required", domain.ErrTaskTitleEmpty), http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("create: %w", domain.NewValidationError("assignedTo", "x", nil)), http.StatusBadRequest},
		{"bad json", fmt.Errorf("%w: eof", shared.ErrInvalidJSON), http.StatusBadRequest},
		{"empty body", shared.ErrEmptyBody, http.StatusBadRequest},
		{"invalid token", auth.ErrInvalidToken, http.StatusUnauthorized},
		{"bad credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{"forbidden", service.ErrForbidden, http.StatusForbidden},
		{"task not found", service.ErrTaskNotFound, http.StatusNotFound},
		{"user not found", service.ErrUserNotFound, http.StatusNotFound},
		{"email taken", service.ErrEmailTaken, http.StatusConflict},
		{"store email exists", store.ErrEmailExists, http.StatusConflict},
		{"user has tasks", service.ErrUserHasTasks, http.StatusConflict},
		{"store user in use", store.ErrUserInUse, http.StatusConflict},
		{"self modification", service.ErrSelfModification, http.StatusForbidden},
		{"infrastructure", service.NewTaskServiceError("list", "failed", errors.New("db down")), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MapErrorToStatusCode(tc.err))
		})
	}
}

func TestGetSafeErrorMessageNeverLeaks(t *testing.T) {
	err := service.NewTaskServiceError("update", "failed to save task",
		errors.New(`pq: UPDATE tasks SET title=$1 failed on postgres://app:hunter2@db:5432`))

	msg := GetSafeErrorMessage(err)
	assert.Equal(t, "An unexpected error occurred", msg)
	assert.NotContains(t, msg, "hunter2")

	assert.Equal(t, "Invalid title: is required",
		GetSafeErrorMessage(domain.NewValidationError("title", "is required", domain.ErrTaskTitleEmpty)))
	assert.Equal(t, "Task not found or not permitted", GetSafeErrorMessage(service.ErrTaskNotFound))
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
	assert.Equal(t, "Cannot delete or demote your own account", GetSafeErrorMessage(service.ErrSelfModification))
	assert.Equal(t, "User still has tasks; reassign or delete them first", GetSafeErrorMessage(service.ErrUserHasTasks))
}

func TestHandleAPIError(t *testing.T) {
	log, buf := logger.NewTestLogger()
	ctx := logger.WithLogger(shared.SetTraceID(context.Background()), log)
	r := httptest.NewRequest(http.MethodGet, "/api/tasks", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	HandleAPIError(w, r, errors.New("password=hunter2"), "Failed to list tasks")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to list tasks")
	assert.NotContains(t, w.Body.String(), "hunter2")

	entries, err := buf.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ERROR", entries[0]["level"])
	assert.NotContains(t, entries[0]["error"], "hunter2")
}
