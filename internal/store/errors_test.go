package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/tasksync/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "generic error", err: errors.New("some error"), expected: false},
		{name: "ErrNotFound", err: ErrNotFound, expected: true},
		{name: "wrapped ErrNotFound", err: fmt.Errorf("lookup: %w", ErrNotFound), expected: true},
		{name: "ErrTaskNotFound", err: ErrTaskNotFound, expected: true},
		{name: "ErrUserNotFound", err: ErrUserNotFound, expected: true},
		{name: "ErrEmailExists", err: ErrEmailExists, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsNotFoundError(tt.err))
		})
	}
}

func TestIsDuplicateError(t *testing.T) {
	assert.True(t, IsDuplicateError(ErrEmailExists))
	assert.True(t, IsDuplicateError(fmt.Errorf("insert: %w", ErrDuplicate)))
	assert.False(t, IsDuplicateError(ErrTaskNotFound))
}

func TestStoreError(t *testing.T) {
	inner := errors.New("connection reset")
	err := NewStoreError("task", "update", "failed to update task", inner)

	assert.Equal(t, "update operation on task failed: failed to update task: connection reset", err.Error())
	assert.ErrorIs(t, err, inner)

	bare := NewStoreError("task", "delete", "no rows", nil)
	assert.Equal(t, "delete operation on task failed: no rows", bare.Error())
}

func TestTaskFilterMatches(t *testing.T) {
	owner := uuid.New()
	task := &domain.Task{ID: uuid.New(), AssignedTo: owner}

	assert.True(t, TaskFilter{}.Matches(task))
	assert.True(t, TaskFilter{AssignedTo: &owner}.Matches(task))

	other := uuid.New()
	assert.False(t, TaskFilter{AssignedTo: &other}.Matches(task))
}
