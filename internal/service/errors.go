package service

import (
	"errors"
	"fmt"
)

// Common service errors. Callers check them with errors.Is.
var (
	// ErrTaskNotFound is returned when a task does not exist or exists but the
	// actor may not see it. The two cases are deliberately indistinguishable.
	ErrTaskNotFound = errors.New("task not found or not permitted")

	// ErrForbidden is returned when the actor's role does not allow an
	// operation that does not target a specific visible task.
	ErrForbidden = errors.New("operation not permitted for this role")

	// ErrUserNotFound is returned when a user lookup finds nothing.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email already registered")

	// ErrUserHasTasks is returned when deleting a user that created or is
	// assigned at least one task.
	ErrUserHasTasks = errors.New("user still has tasks")

	// ErrSelfModification is returned when an admin tries to delete or demote
	// their own account.
	ErrSelfModification = fmt.Errorf("%w: cannot delete or demote own account", ErrForbidden)
)

// TaskServiceError is a custom error type for task service errors.
type TaskServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for TaskServiceError.
func (e *TaskServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("task service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TaskServiceError) Unwrap() error {
	return e.Err
}

// NewTaskServiceError creates a new TaskServiceError.
func NewTaskServiceError(operation, message string, err error) *TaskServiceError {
	return &TaskServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// UserServiceError is a custom error type for user service errors.
type UserServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for UserServiceError.
func (e *UserServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("user service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("user service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *UserServiceError) Unwrap() error {
	return e.Err
}
