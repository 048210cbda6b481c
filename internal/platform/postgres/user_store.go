package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/tasksync/internal/domain"
	"github.com/phrazzld/tasksync/internal/platform/logger"
	"github.com/phrazzld/tasksync/internal/store"
)

const userColumns = `id, name, email, hashed_password, role, created_at, updated_at`

// PostgresUserStore implements the store.UserStore interface
// using a PostgreSQL database as the storage backend.
type PostgresUserStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUserStore creates a new PostgreSQL implementation of the UserStore interface.
func NewPostgresUserStore(db store.DBTX, logger *slog.Logger) *PostgresUserStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresUserStore{
		db:     db,
		logger: logger.With(slog.String("component", "user_store")),
	}
}

// Ensure PostgresUserStore implements store.UserStore interface
var _ store.UserStore = (*PostgresUserStore)(nil)

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	var role string
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.HashedPassword,
		&role,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.Role = domain.Role(role)
	return &user, nil
}

// Create implements store.UserStore.Create.
// The plaintext Password is never written; HashedPassword must be set.
func (s *PostgresUserStore) Create(ctx context.Context, user *domain.User) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if user.HashedPassword == "" {
		return store.NewStoreError("user", "create", "hashed password is required", store.ErrInvalidEntity)
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Name,
		strings.ToLower(user.Email),
		user.HashedPassword,
		string(user.Role),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Debug("email already registered", slog.String("user_id", user.ID.String()))
			return store.ErrEmailExists
		}
		log.Error("failed to create user",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return store.NewStoreError("user", "create", "insert failed", MapError(err))
	}

	log.Info("user created",
		slog.String("user_id", user.ID.String()),
		slog.String("role", string(user.Role)))
	return nil
}

func (s *PostgresUserStore) getOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	user, err := scanUser(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get user",
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("user", "get", "query failed", MapError(err))
	}
	return user, nil
}

// GetByID implements store.UserStore.GetByID.
func (s *PostgresUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.getOne(ctx, `id = $1`, id)
}

// GetByEmail implements store.UserStore.GetByEmail. The lookup is case-insensitive.
func (s *PostgresUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getOne(ctx, `lower(email) = $1`, strings.ToLower(email))
}

// List implements store.UserStore.List.
func (s *PostgresUserStore) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY name, email`)
	if err != nil {
		return nil, store.NewStoreError("user", "list", "query failed", MapError(err))
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, store.NewStoreError("user", "list", "scan failed", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("user", "list", "row iteration failed", err)
	}
	return users, nil
}

// Update implements store.UserStore.Update.
func (s *PostgresUserStore) Update(ctx context.Context, user *domain.User) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if user.HashedPassword == "" {
		return store.NewStoreError("user", "update", "hashed password is required", store.ErrInvalidEntity)
	}

	query := `
		UPDATE users
		SET name = $1, email = $2, hashed_password = $3, role = $4, updated_at = $5
		WHERE id = $6
	`
	result, err := s.db.ExecContext(ctx, query,
		user.Name,
		strings.ToLower(user.Email),
		user.HashedPassword,
		string(user.Role),
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return store.ErrEmailExists
		}
		log.Error("failed to update user",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return store.NewStoreError("user", "update", "update failed", MapError(err))
	}

	if err := CheckRowsAffected(result, store.ErrUserNotFound); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("update user %s: %w", user.ID, err)
	}
	return nil
}

// Delete implements store.UserStore.Delete.
// The task foreign keys have no ON DELETE action, so a user that tasks still
// reference cannot be removed.
func (s *PostgresUserStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return store.ErrUserInUse
		}
		log.Error("failed to delete user",
			slog.String("error", err.Error()),
			slog.String("user_id", id.String()))
		return store.NewStoreError("user", "delete", "delete failed", MapError(err))
	}

	if err := CheckRowsAffected(result, store.ErrUserNotFound); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("delete user %s: %w", id, err)
	}

	log.Info("user deleted", slog.String("user_id", id.String()))
	return nil
}

// ListIDsByRole implements store.UserStore.ListIDsByRole.
func (s *PostgresUserStore) ListIDsByRole(ctx context.Context, role domain.Role) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users WHERE role = $1`, string(role))
	if err != nil {
		return nil, store.NewStoreError("user", "list_ids_by_role", "query failed", MapError(err))
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, store.NewStoreError("user", "list_ids_by_role", "scan failed", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("user", "list_ids_by_role", "row iteration failed", err)
	}
	return ids, nil
}
