package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/phrazzld/tasksync/internal/domain"
	"github.com/phrazzld/tasksync/internal/store"
)

// IdentityDirectory resolves an identity id to whether it exists and its role.
type IdentityDirectory interface {
	Resolve(ctx context.Context, id uuid.UUID) (exists bool, role domain.Role, err error)
}

// UserDirectory implements IdentityDirectory on top of a store.UserStore.
type UserDirectory struct {
	users store.UserStore
}

var _ IdentityDirectory = (*UserDirectory)(nil)

// NewUserDirectory creates a UserDirectory.
func NewUserDirectory(users store.UserStore) *UserDirectory {
	return &UserDirectory{users: users}
}

// Resolve implements IdentityDirectory. A missing user is not an error.
func (d *UserDirectory) Resolve(ctx context.Context, id uuid.UUID) (bool, domain.Role, error) {
	user, err := d.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, "", nil
		}
		return false, "", err
	}
	return true, user.Role, nil
}
