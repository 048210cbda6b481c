package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	admin := uuid.New()
	member := uuid.New()

	t.Run("defaults status to pending", func(t *testing.T) {
		task, err := NewTask("  Ship release ", "", "", admin, member)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, task.ID)
		assert.Equal(t, "Ship release", task.Title)
		assert.Equal(t, TaskStatusPending, task.Status)
		assert.Equal(t, admin, task.CreatedBy)
		assert.Equal(t, member, task.AssignedTo)
		assert.False(t, task.CreatedAt.IsZero())
	})

	t.Run("keeps explicit status", func(t *testing.T) {
		task, err := NewTask("Ship release", "notes", TaskStatusInProgress, admin, member)
		require.NoError(t, err)
		assert.Equal(t, TaskStatusInProgress, task.Status)
		assert.Equal(t, "notes", task.Description)
	})

	t.Run("empty title is a validation error on title", func(t *testing.T) {
		_, err := NewTask("   ", "", "", admin, member)
		require.Error(t, err)

		var vErr *ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "title", vErr.Field)
		assert.ErrorIs(t, err, ErrTaskTitleEmpty)
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		_, err := NewTask("Ship release", "", TaskStatus("done"), admin, member)
		assert.ErrorIs(t, err, ErrInvalidTaskStatus)
	})

	t.Run("missing assignee rejected", func(t *testing.T) {
		_, err := NewTask("Ship release", "", "", admin, uuid.Nil)
		assert.ErrorIs(t, err, ErrTaskAssigneeEmpty)
	})
}

func TestTaskStatusTransitionsAreUnconstrained(t *testing.T) {
	statuses := []TaskStatus{TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted}
	for _, from := range statuses {
		for _, to := range statuses {
			assert.True(t, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.False(t, TaskStatusPending.CanTransitionTo(TaskStatus("archived")))
}

func TestParseTaskStatus(t *testing.T) {
	status, err := ParseTaskStatus("in_progress")
	require.NoError(t, err)
	assert.Equal(t, TaskStatusInProgress, status)

	_, err = ParseTaskStatus("done")
	assert.ErrorIs(t, err, ErrInvalidTaskStatus)
}

func TestTaskPatchApply(t *testing.T) {
	original, err := NewTask("Ship release", "v1", "", uuid.New(), uuid.New())
	require.NoError(t, err)

	t.Run("applies only present fields", func(t *testing.T) {
		completed := TaskStatusCompleted
		updated, err := TaskPatch{Status: &completed}.Apply(original)
		require.NoError(t, err)

		assert.Equal(t, TaskStatusCompleted, updated.Status)
		assert.Equal(t, original.Title, updated.Title)
		assert.Equal(t, original.Description, updated.Description)
		assert.Equal(t, TaskStatusPending, original.Status, "original must not be modified")
	})

	t.Run("keeps immutable fields", func(t *testing.T) {
		newAssignee := uuid.New()
		title := "Ship release 2"
		updated, err := TaskPatch{Title: &title, AssignedTo: &newAssignee}.Apply(original)
		require.NoError(t, err)

		assert.Equal(t, original.ID, updated.ID)
		assert.Equal(t, original.CreatedBy, updated.CreatedBy)
		assert.Equal(t, original.CreatedAt, updated.CreatedAt)
		assert.Equal(t, newAssignee, updated.AssignedTo)
	})

	t.Run("blank title rejected", func(t *testing.T) {
		blank := " "
		_, err := TaskPatch{Title: &blank}.Apply(original)
		assert.ErrorIs(t, err, ErrTaskTitleEmpty)
	})

	t.Run("applying the same patch twice is idempotent", func(t *testing.T) {
		inProgress := TaskStatusInProgress
		desc := "v2"
		patch := TaskPatch{Status: &inProgress, Description: &desc}

		first, err := patch.Apply(original)
		require.NoError(t, err)
		second, err := patch.Apply(first)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("empty patch", func(t *testing.T) {
		assert.True(t, TaskPatch{}.IsEmpty())
		assert.False(t, TaskPatch{}.Reassigns())
	})
}
