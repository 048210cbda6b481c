package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/tasksync/internal/domain"
)

// TaskFilter narrows a task listing. The zero value matches every task.
type TaskFilter struct {
	// AssignedTo, when set, restricts the listing to tasks assigned to that user.
	AssignedTo *uuid.UUID
}

// Matches reports whether the task satisfies the filter.
func (f TaskFilter) Matches(task *domain.Task) bool {
	if f.AssignedTo != nil && task.AssignedTo != *f.AssignedTo {
		return false
	}
	return true
}

// TaskStore defines the interface for task persistence.
// There is no version column: concurrent updates to the same task are last-write-wins.
type TaskStore interface {
	// Create inserts a new task.
	// Returns ErrInvalidEntity if a referenced user does not exist.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// List returns every task matching the filter, oldest first.
	// A zero filter returns all tasks.
	List(ctx context.Context, filter TaskFilter) ([]*domain.Task, error)

	// Update overwrites the mutable fields (title, description, status, assignee).
	// ID, CreatedBy and CreatedAt are never changed.
	// Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, task *domain.Task) error

	// Delete permanently removes a task.
	// Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}
