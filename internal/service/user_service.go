package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/tasksync/internal/domain"
	"github.com/phrazzld/tasksync/internal/platform/logger"
	"github.com/phrazzld/tasksync/internal/service/auth"
	"github.com/phrazzld/tasksync/internal/store"
)

// UserService provides user registration, credential checks and lookups.
type UserService interface {
	// Register creates a user with the given role.
	Register(ctx context.Context, name, email, password string, role domain.Role) (*domain.User, error)

	// Authenticate returns the user owning email if password matches.
	// Any mismatch yields auth.ErrInvalidCredentials.
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)

	// GetUser retrieves a user by their ID.
	GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)

	// ListUsers returns every user.
	ListUsers(ctx context.Context) ([]*domain.User, error)

	// UpdateUser applies patch to the user on behalf of actor. A new password
	// is hashed before it is stored. Returns ErrUserNotFound, ErrEmailTaken,
	// or ErrSelfModification when actor tries to change their own role.
	UpdateUser(ctx context.Context, actor domain.Identity, userID uuid.UUID, patch domain.UserPatch) (*domain.User, error)

	// DeleteUser removes the user on behalf of actor. Users referenced by any
	// task are kept and ErrUserHasTasks is returned; their tasks must be
	// reassigned or deleted first.
	DeleteUser(ctx context.Context, actor domain.Identity, userID uuid.UUID) error

	// EnsureAdmin creates an admin with the given credentials unless the email
	// is already registered. It reports whether a user was created.
	EnsureAdmin(ctx context.Context, name, email, password string) (bool, error)
}

// UserServiceImpl implements the UserService interface
type UserServiceImpl struct {
	userStore store.UserStore
	hasher    auth.PasswordHasher
	verifier  auth.PasswordVerifier
	logger    *slog.Logger
}

var _ UserService = (*UserServiceImpl)(nil)

// NewUserService creates a new UserService.
func NewUserService(
	userStore store.UserStore,
	hasher auth.PasswordHasher,
	verifier auth.PasswordVerifier,
	logger *slog.Logger,
) *UserServiceImpl {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserServiceImpl{
		userStore: userStore,
		hasher:    hasher,
		verifier:  verifier,
		logger:    logger.With(slog.String("component", "user_service")),
	}
}

// userFieldError attaches the offending field to a domain user validation error.
func userFieldError(err error) error {
	switch {
	case errors.Is(err, domain.ErrEmptyUserName):
		return domain.NewValidationError("name", "is required", err)
	case errors.Is(err, domain.ErrEmptyEmail), errors.Is(err, domain.ErrInvalidEmail):
		return domain.NewValidationError("email", "must be a valid email address", err)
	case errors.Is(err, domain.ErrEmptyPassword),
		errors.Is(err, domain.ErrPasswordTooShort),
		errors.Is(err, domain.ErrPasswordTooLong):
		return domain.NewValidationError("password", "must be between 8 and 72 characters", err)
	case errors.Is(err, domain.ErrInvalidRole):
		return domain.NewValidationError("role", "must be admin or member", err)
	default:
		return err
	}
}

// Register implements UserService.Register.
func (s *UserServiceImpl) Register(
	ctx context.Context,
	name, email, password string,
	role domain.Role,
) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := domain.NewUser(name, email, password, role)
	if err != nil {
		return nil, userFieldError(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		log.Error("failed to hash password", slog.String("error", err.Error()))
		return nil, &UserServiceError{Operation: "register", Message: "failed to hash password", Err: err}
	}
	user.HashedPassword = hash
	user.Password = ""

	if err := s.userStore.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			log.Debug("attempted to register existing email")
			return nil, ErrEmailTaken
		}
		log.Error("failed to save user", slog.String("error", err.Error()))
		return nil, &UserServiceError{Operation: "register", Message: "failed to save user", Err: err}
	}

	log.Info("user registered",
		slog.String("user_id", user.ID.String()),
		slog.String("role", string(user.Role)))
	return user, nil
}

// Authenticate implements UserService.Authenticate.
func (s *UserServiceImpl) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.userStore.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, auth.ErrInvalidCredentials
		}
		log.Error("failed to look up user for login", slog.String("error", err.Error()))
		return nil, &UserServiceError{Operation: "authenticate", Message: "failed to look up user", Err: err}
	}

	if err := s.verifier.Compare(user.HashedPassword, password); err != nil {
		log.Debug("password mismatch", slog.String("user_id", user.ID.String()))
		return nil, auth.ErrInvalidCredentials
	}

	return user, nil
}

// GetUser implements UserService.GetUser.
func (s *UserServiceImpl) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userStore.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to retrieve user",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, &UserServiceError{Operation: "get", Message: "failed to retrieve user", Err: err}
	}
	return user, nil
}

// ListUsers implements UserService.ListUsers.
func (s *UserServiceImpl) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.userStore.List(ctx)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list users",
			slog.String("error", err.Error()))
		return nil, &UserServiceError{Operation: "list", Message: "failed to list users", Err: err}
	}
	return users, nil
}

// UpdateUser implements UserService.UpdateUser.
func (s *UserServiceImpl) UpdateUser(
	ctx context.Context,
	actor domain.Identity,
	userID uuid.UUID,
	patch domain.UserPatch,
) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	current, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return current, nil
	}
	if actor.ID == userID && patch.Role != nil && *patch.Role != current.Role {
		return nil, ErrSelfModification
	}

	updated, err := patch.Apply(current)
	if err != nil {
		return nil, userFieldError(err)
	}
	if updated.Password != "" {
		hash, err := s.hasher.Hash(updated.Password)
		if err != nil {
			log.Error("failed to hash password", slog.String("error", err.Error()))
			return nil, &UserServiceError{Operation: "update", Message: "failed to hash password", Err: err}
		}
		updated.HashedPassword = hash
		updated.Password = ""
	}

	if err := s.userStore.Update(ctx, updated); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			return nil, ErrEmailTaken
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrUserNotFound
		}
		log.Error("failed to update user",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, &UserServiceError{Operation: "update", Message: "failed to update user", Err: err}
	}

	log.Info("user updated",
		slog.String("user_id", userID.String()),
		slog.String("actor_id", actor.ID.String()),
		slog.Bool("password_changed", patch.Password != nil))
	return updated, nil
}

// DeleteUser implements UserService.DeleteUser.
func (s *UserServiceImpl) DeleteUser(ctx context.Context, actor domain.Identity, userID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if actor.ID == userID {
		return ErrSelfModification
	}

	if err := s.userStore.Delete(ctx, userID); err != nil {
		switch {
		case errors.Is(err, store.ErrReferenced):
			log.Debug("refused to delete user with tasks", slog.String("user_id", userID.String()))
			return ErrUserHasTasks
		case errors.Is(err, store.ErrNotFound):
			return ErrUserNotFound
		}
		log.Error("failed to delete user",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return &UserServiceError{Operation: "delete", Message: "failed to delete user", Err: err}
	}

	log.Info("user deleted",
		slog.String("user_id", userID.String()),
		slog.String("actor_id", actor.ID.String()))
	return nil
}

// EnsureAdmin implements UserService.EnsureAdmin.
func (s *UserServiceImpl) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	_, err := s.userStore.GetByEmail(ctx, email)
	if err == nil {
		log.Info("admin already exists, skipping seed")
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, &UserServiceError{Operation: "ensure_admin", Message: "failed to look up user", Err: err}
	}

	if _, err := s.Register(ctx, name, email, password, domain.RoleAdmin); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
