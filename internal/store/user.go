package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/tasksync/internal/domain"
)

// UserStore defines the interface for user persistence.
type UserStore interface {
	// Create saves a new user. The user's Password must already be hashed
	// into HashedPassword by the caller.
	// Returns ErrEmailExists if the email is already taken.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByEmail retrieves a user by email address.
	// Returns ErrUserNotFound if the user does not exist.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// List returns every user, ordered by name.
	List(ctx context.Context) ([]*domain.User, error)

	// Update overwrites name, email, role, hashed password and UpdatedAt.
	// Returns ErrUserNotFound if the user does not exist and ErrEmailExists
	// if the new email belongs to someone else.
	Update(ctx context.Context, user *domain.User) error

	// Delete permanently removes a user.
	// Returns ErrUserNotFound if the user does not exist and ErrUserInUse if
	// any task was created by or is assigned to the user.
	Delete(ctx context.Context, id uuid.UUID) error

	// ListIDsByRole returns the IDs of every user holding role.
	ListIDsByRole(ctx context.Context, role domain.Role) ([]uuid.UUID, error)
}
