package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/tasksync/internal/domain"
	"github.com/phrazzld/tasksync/internal/domain/policy"
	"github.com/phrazzld/tasksync/internal/events"
	"github.com/phrazzld/tasksync/internal/platform/logger"
	"github.com/phrazzld/tasksync/internal/store"
)

// TaskInput carries the fields of a task to be created.
type TaskInput struct {
	Title       string
	Description string
	// Status defaults to pending when empty.
	Status     domain.TaskStatus
	AssignedTo uuid.UUID
}

// TaskService provides task operations on behalf of a verified actor.
type TaskService interface {
	// Create creates a task. Only admins may create tasks.
	Create(ctx context.Context, actor domain.Identity, input TaskInput) (*domain.Task, error)

	// Get returns one task. It fails with ErrTaskNotFound if the task is
	// missing or the actor may not read it.
	Get(ctx context.Context, actor domain.Identity, taskID uuid.UUID) (*domain.Task, error)

	// Update applies the fields present in patch. It fails with ErrTaskNotFound
	// if the task is missing or the actor may not update it.
	Update(ctx context.Context, actor domain.Identity, taskID uuid.UUID, patch domain.TaskPatch) (*domain.Task, error)

	// Delete removes a task. Only admins may delete tasks.
	Delete(ctx context.Context, actor domain.Identity, taskID uuid.UUID) error

	// List returns every task for admins and the actor's own tasks for members.
	List(ctx context.Context, actor domain.Identity) ([]*domain.Task, error)

	// ListOwn returns the tasks assigned to the actor.
	ListOwn(ctx context.Context, actor domain.Identity) ([]*domain.Task, error)
}

// taskServiceImpl implements the TaskService interface
type taskServiceImpl struct {
	tasks     store.TaskStore
	directory IdentityDirectory
	emitter   events.EventEmitter
	logger    *slog.Logger
}

var _ TaskService = (*taskServiceImpl)(nil)

// NewTaskService creates a new TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(
	tasks store.TaskStore,
	directory IdentityDirectory,
	emitter events.EventEmitter,
	logger *slog.Logger,
) (TaskService, error) {
	if tasks == nil {
		return nil, domain.NewValidationError("tasks", "cannot be nil", domain.ErrValidation)
	}
	if directory == nil {
		return nil, domain.NewValidationError("directory", "cannot be nil", domain.ErrValidation)
	}
	if emitter == nil {
		return nil, domain.NewValidationError("emitter", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &taskServiceImpl{
		tasks:     tasks,
		directory: directory,
		emitter:   emitter,
		logger:    logger.With(slog.String("component", "task_service")),
	}, nil
}

// Create implements TaskService.Create.
func (s *taskServiceImpl) Create(ctx context.Context, actor domain.Identity, input TaskInput) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !policy.Decide(actor.Role, false, policy.OpCreate).Allowed() {
		log.Debug("task creation forbidden", slog.String("actor_id", actor.ID.String()))
		return nil, ErrForbidden
	}

	if err := s.requireUser(ctx, "create", input.AssignedTo); err != nil {
		return nil, err
	}

	task, err := domain.NewTask(input.Title, input.Description, input.Status, actor.ID, input.AssignedTo)
	if err != nil {
		return nil, err
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		if errors.Is(err, store.ErrInvalidEntity) {
			// The assignee or creator vanished between resolve and insert.
			return nil, domain.NewValidationError("assignedTo", "user does not exist", domain.ErrValidation)
		}
		log.Error("failed to persist task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return nil, NewTaskServiceError("create", "failed to save task", err)
	}

	log.Info("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("actor_id", actor.ID.String()),
		slog.String("assigned_to", task.AssignedTo.String()))

	s.emit(ctx, events.NewTaskEvent(events.KindTaskCreated, task, actor.ID))
	return task, nil
}

// Get implements TaskService.Get.
func (s *taskServiceImpl) Get(ctx context.Context, actor domain.Identity, taskID uuid.UUID) (*domain.Task, error) {
	task, err := s.load(ctx, "get", taskID)
	if err != nil {
		return nil, err
	}
	if !policy.Decide(actor.Role, task.IsAssignedTo(actor.ID), policy.OpRead).Allowed() {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

// Update implements TaskService.Update.
// There is no version check: concurrent updates are last-write-wins.
func (s *taskServiceImpl) Update(
	ctx context.Context,
	actor domain.Identity,
	taskID uuid.UUID,
	patch domain.TaskPatch,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	current, err := s.load(ctx, "update", taskID)
	if err != nil {
		return nil, err
	}

	ops := policy.OperationsForPatch(patch)
	if !policy.DecideAll(actor.Role, current.IsAssignedTo(actor.ID), ops...).Allowed() {
		log.Debug("task update forbidden",
			slog.String("task_id", taskID.String()),
			slog.String("actor_id", actor.ID.String()))
		return nil, ErrTaskNotFound
	}

	if patch.IsEmpty() {
		return current, nil
	}

	if patch.Reassigns() && *patch.AssignedTo != current.AssignedTo {
		if err := s.requireUser(ctx, "update", *patch.AssignedTo); err != nil {
			return nil, err
		}
	}

	updated, err := patch.Apply(current)
	if err != nil {
		return nil, err
	}

	if err := s.tasks.Update(ctx, updated); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			// Deleted between load and write.
			return nil, ErrTaskNotFound
		case errors.Is(err, store.ErrInvalidEntity):
			return nil, domain.NewValidationError("assignedTo", "user does not exist", domain.ErrValidation)
		}
		log.Error("failed to persist task update",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return nil, NewTaskServiceError("update", "failed to save task", err)
	}

	log.Info("task updated",
		slog.String("task_id", taskID.String()),
		slog.String("actor_id", actor.ID.String()),
		slog.String("status", string(updated.Status)))

	event := events.NewTaskEvent(events.KindTaskUpdated, updated, actor.ID).
		WithPreviousAssignee(current.AssignedTo)
	s.emit(ctx, event)
	return updated, nil
}

// Delete implements TaskService.Delete.
func (s *taskServiceImpl) Delete(ctx context.Context, actor domain.Identity, taskID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !policy.Decide(actor.Role, false, policy.OpDelete).Allowed() {
		log.Debug("task deletion forbidden", slog.String("actor_id", actor.ID.String()))
		return ErrForbidden
	}

	snapshot, err := s.load(ctx, "delete", taskID)
	if err != nil {
		return err
	}

	if err := s.tasks.Delete(ctx, taskID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTaskNotFound
		}
		log.Error("failed to delete task",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return NewTaskServiceError("delete", "failed to delete task", err)
	}

	log.Info("task deleted",
		slog.String("task_id", taskID.String()),
		slog.String("actor_id", actor.ID.String()))

	s.emit(ctx, events.NewTaskEvent(events.KindTaskDeleted, snapshot, actor.ID))
	return nil
}

// List implements TaskService.List.
func (s *taskServiceImpl) List(ctx context.Context, actor domain.Identity) ([]*domain.Task, error) {
	if policy.Decide(actor.Role, false, policy.OpListAll).Allowed() {
		return s.list(ctx, store.TaskFilter{})
	}
	return s.ListOwn(ctx, actor)
}

// ListOwn implements TaskService.ListOwn.
func (s *taskServiceImpl) ListOwn(ctx context.Context, actor domain.Identity) ([]*domain.Task, error) {
	if !policy.Decide(actor.Role, true, policy.OpListOwn).Allowed() {
		return nil, ErrForbidden
	}
	id := actor.ID
	return s.list(ctx, store.TaskFilter{AssignedTo: &id})
}

func (s *taskServiceImpl) list(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	tasks, err := s.tasks.List(ctx, filter)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list tasks",
			slog.String("error", err.Error()))
		return nil, NewTaskServiceError("list", "failed to list tasks", err)
	}
	return tasks, nil
}

func (s *taskServiceImpl) load(ctx context.Context, operation string, taskID uuid.UUID) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to load task",
			slog.String("error", err.Error()),
			slog.String("operation", operation),
			slog.String("task_id", taskID.String()))
		return nil, NewTaskServiceError(operation, "failed to load task", err)
	}
	return task, nil
}

// requireUser fails with a ValidationError on assignedTo if id is unknown.
func (s *taskServiceImpl) requireUser(ctx context.Context, operation string, id uuid.UUID) error {
	if id == uuid.Nil {
		return domain.NewValidationError("assignedTo", "is required", domain.ErrTaskAssigneeEmpty)
	}
	exists, _, err := s.directory.Resolve(ctx, id)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to resolve assignee",
			slog.String("error", err.Error()),
			slog.String("user_id", id.String()))
		return NewTaskServiceError(operation, "failed to resolve assignee", err)
	}
	if !exists {
		return domain.NewValidationError("assignedTo", "user does not exist", domain.ErrValidation)
	}
	return nil
}

// emit hands event to the emitter. Failures are logged and never returned:
// the mutation has already been persisted.
func (s *taskServiceImpl) emit(ctx context.Context, event *events.TaskEvent) {
	if err := s.emitter.EmitEvent(context.WithoutCancel(ctx), event); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed to emit task event",
			slog.String("error", err.Error()),
			slog.String("event_id", event.ID.String()),
			slog.String("kind", string(event.Kind)),
			slog.String("task_id", event.Task.ID.String()))
	}
}
