package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/tasksync/internal/domain"
	"github.com/phrazzld/tasksync/internal/platform/logger"
	"github.com/phrazzld/tasksync/internal/store"
)

const taskColumns = `id, title, description, status, created_by, assigned_to, created_at`

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// It accepts a database connection or transaction that is managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var status string
	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&status,
		&task.CreatedBy,
		&task.AssignedTo,
		&task.CreatedAt,
	); err != nil {
		return nil, err
	}
	task.Status = domain.TaskStatus(status)
	task.CreatedAt = task.CreatedAt.UTC()
	return &task, nil
}

// Create implements store.TaskStore.Create.
// Returns store.ErrInvalidEntity if the creator or assignee doesn't exist.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		string(task.Status),
		task.CreatedBy,
		task.AssignedTo,
		task.CreatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			log.Warn("task references an unknown user",
				slog.String("task_id", task.ID.String()),
				slog.String("assigned_to", task.AssignedTo.String()))
		} else {
			log.Error("failed to create task",
				slog.String("error", err.Error()),
				slog.String("task_id", task.ID.String()))
		}
		return store.NewStoreError("task", "create", "insert failed", MapError(err))
	}

	log.Debug("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("assigned_to", task.AssignedTo.String()))
	return nil
}

// GetByID implements store.TaskStore.GetByID.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.String("task_id", id.String()))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by ID",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, store.NewStoreError("task", "get", "query failed", MapError(err))
	}

	return task, nil
}

// List implements store.TaskStore.List.
func (s *PostgresTaskStore) List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any
	if filter.AssignedTo != nil {
		query += ` WHERE assigned_to = $1`
		args = append(args, *filter.AssignedTo)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list tasks", slog.String("error", err.Error()))
		return nil, store.NewStoreError("task", "list", "query failed", MapError(err))
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.Warn("failed to close rows", slog.String("error", cerr.Error()))
		}
	}()

	tasks := make([]*domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, store.NewStoreError("task", "list", "scan failed", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("task", "list", "row iteration failed", err)
	}

	return tasks, nil
}

// Update implements store.TaskStore.Update.
// Only the mutable columns are written; there is no version check.
func (s *PostgresTaskStore) Update(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE tasks
		SET title = $1, description = $2, status = $3, assigned_to = $4
		WHERE id = $5
	`
	result, err := s.db.ExecContext(ctx, query,
		task.Title,
		task.Description,
		string(task.Status),
		task.AssignedTo,
		task.ID,
	)
	if err != nil {
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return store.NewStoreError("task", "update", "update failed", MapError(err))
	}

	if err := CheckRowsAffected(result, store.ErrTaskNotFound); err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return err
		}
		return fmt.Errorf("update task %s: %w", task.ID, err)
	}
	return nil
}

// Delete implements store.TaskStore.Delete.
func (s *PostgresTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return store.NewStoreError("task", "delete", "delete failed", MapError(err))
	}

	if err := CheckRowsAffected(result, store.ErrTaskNotFound); err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return err
		}
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}
