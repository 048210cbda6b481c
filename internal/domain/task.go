package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Task-specific validation errors
var (
	ErrTaskIDEmpty         = errors.New("task ID cannot be empty")
	ErrTaskTitleEmpty      = errors.New("task title cannot be empty")
	ErrTaskCreatorEmpty    = errors.New("task creator cannot be empty")
	ErrTaskAssigneeEmpty   = errors.New("task assignee cannot be empty")
	ErrTaskCreatedAtNotSet = errors.New("task creation time must be set")
)

// TaskStatus is the closed set of lifecycle states of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether a task in status s may be moved to next.
// Transitions are unconstrained: any valid status may follow any other,
// including moving backwards or staying put.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	return s.Valid() && next.Valid()
}

// ParseTaskStatus converts a raw string into a TaskStatus.
func ParseTaskStatus(s string) (TaskStatus, error) {
	status := TaskStatus(strings.TrimSpace(s))
	if !status.Valid() {
		return "", NewValidationError(
			"status",
			"must be one of pending, in_progress, completed",
			ErrInvalidTaskStatus,
		)
	}
	return status, nil
}

// Task is a unit of work created by an admin and assigned to a user.
// ID, CreatedBy and CreatedAt are immutable after creation.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	CreatedBy   uuid.UUID  `json:"created_by"`
	AssignedTo  uuid.UUID  `json:"assigned_to"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewTask creates a new Task with a fresh ID. An empty status defaults to pending.
func NewTask(
	title, description string,
	status TaskStatus,
	createdBy, assignedTo uuid.UUID,
) (*Task, error) {
	if status == "" {
		status = TaskStatusPending
	}

	task := &Task{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(title),
		Description: description,
		Status:      status,
		CreatedBy:   createdBy,
		AssignedTo:  assignedTo,
		CreatedAt:   time.Now().UTC(),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks the task invariants. Field errors are returned as *ValidationError.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return NewValidationError("id", "is required", ErrTaskIDEmpty)
	}
	if strings.TrimSpace(t.Title) == "" {
		return NewValidationError("title", "is required", ErrTaskTitleEmpty)
	}
	if !t.Status.Valid() {
		return NewValidationError(
			"status",
			"must be one of pending, in_progress, completed",
			ErrInvalidTaskStatus,
		)
	}
	if t.CreatedBy == uuid.Nil {
		return NewValidationError("createdBy", "is required", ErrTaskCreatorEmpty)
	}
	if t.AssignedTo == uuid.Nil {
		return NewValidationError("assignedTo", "is required", ErrTaskAssigneeEmpty)
	}
	if t.CreatedAt.IsZero() {
		return NewValidationError("createdAt", "is required", ErrTaskCreatedAtNotSet)
	}
	return nil
}

// IsAssignedTo reports whether the task is assigned to the given user.
func (t *Task) IsAssignedTo(userID uuid.UUID) bool {
	return t.AssignedTo == userID
}

// TaskPatch is a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *TaskStatus
	AssignedTo  *uuid.UUID
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.AssignedTo == nil
}

// Reassigns reports whether the patch touches the assignee.
func (p TaskPatch) Reassigns() bool {
	return p.AssignedTo != nil
}

// Apply returns a copy of t with the patch applied. The original task is not modified.
func (p TaskPatch) Apply(t *Task) (*Task, error) {
	updated := *t

	if p.Title != nil {
		updated.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		updated.Description = *p.Description
	}
	if p.Status != nil {
		if !t.Status.CanTransitionTo(*p.Status) {
			return nil, NewValidationError(
				"status",
				"must be one of pending, in_progress, completed",
				ErrInvalidTaskStatus,
			)
		}
		updated.Status = *p.Status
	}
	if p.AssignedTo != nil {
		updated.AssignedTo = *p.AssignedTo
	}

	if err := updated.Validate(); err != nil {
		return nil, err
	}

	return &updated, nil
}
