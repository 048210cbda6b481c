package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/tasksync/internal/api/shared"
	"github.com/phrazzld/tasksync/internal/domain"
	"github.com/phrazzld/tasksync/internal/platform/logger"
	"github.com/phrazzld/tasksync/internal/service"
)

// UserLookup resolves the users a task references.
type UserLookup interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	tasks  service.TaskService
	users  UserLookup
	logger *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(tasks service.TaskService, users UserLookup, logger *slog.Logger) *TaskHandler {
	if tasks == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("task service cannot be nil for TaskHandler")
	}
	if users == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("user lookup cannot be nil for TaskHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}
	return &TaskHandler{
		tasks:  tasks,
		users:  users,
		logger: logger.With(slog.String("component", "task_handler")),
	}
}

// ListTasks handles GET /api/tasks.
// Admins receive every task, members only their own.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	identity, ok := requireIdentity(w, r, log)
	if !ok {
		return
	}

	tasks, err := h.tasks.List(r.Context(), identity)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list tasks")
		return
	}
	h.respondTasks(w, r, tasks)
}

// ListMyTasks handles GET /api/tasks/my.
func (h *TaskHandler) ListMyTasks(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	identity, ok := requireIdentity(w, r, log)
	if !ok {
		return
	}

	tasks, err := h.tasks.ListOwn(r.Context(), identity)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list tasks")
		return
	}
	h.respondTasks(w, r, tasks)
}

// GetTask handles GET /api/tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	identity, taskID, ok := handleIdentityAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	task, err := h.tasks.Get(r.Context(), identity, taskID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get task")
		return
	}
	h.respondTask(w, r, http.StatusOK, task)
}

// CreateTask handles POST /api/tasks.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	identity, ok := requireIdentity(w, r, log)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	input := service.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  uuid.MustParse(req.AssignedTo),
	}
	if req.Status != "" {
		status, err := domain.ParseTaskStatus(req.Status)
		if err != nil {
			HandleAPIError(w, r, err, "")
			return
		}
		input.Status = status
	}

	task, err := h.tasks.Create(r.Context(), identity, input)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create task")
		return
	}

	log.Debug("task created via API", slog.String("task_id", task.ID.String()))
	h.respondTask(w, r, http.StatusCreated, task)
}

// UpdateTask handles PUT /api/tasks/{id}.
// A task the caller may not update is reported exactly like a missing one.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	identity, taskID, ok := handleIdentityAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	task, err := h.tasks.Update(r.Context(), identity, taskID, patch)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update task")
		return
	}
	h.respondTask(w, r, http.StatusOK, task)
}

// DeleteTask handles DELETE /api/tasks/{id}.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	identity, taskID, ok := handleIdentityAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	if err := h.tasks.Delete(r.Context(), identity, taskID); err != nil {
		HandleAPIError(w, r, err, "Failed to delete task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// present converts tasks to responses with creator and assignee summaries.
// Each referenced user is looked up once per call.
func (h *TaskHandler) present(ctx context.Context, tasks []*domain.Task) ([]TaskResponse, error) {
	summaries := make(map[uuid.UUID]*UserSummary)
	summary := func(id uuid.UUID) (*UserSummary, error) {
		if s, ok := summaries[id]; ok {
			return s, nil
		}
		user, err := h.users.GetUser(ctx, id)
		if err != nil && !errors.Is(err, service.ErrUserNotFound) {
			return nil, err
		}
		var s *UserSummary
		if user != nil {
			s = userToSummary(user)
		}
		summaries[id] = s
		return s, nil
	}

	out := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		resp := taskToResponse(task)
		var err error
		if resp.Creator, err = summary(task.CreatedBy); err != nil {
			return nil, err
		}
		if resp.Assignee, err = summary(task.AssignedTo); err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, nil
}

func (h *TaskHandler) respondTasks(w http.ResponseWriter, r *http.Request, tasks []*domain.Task) {
	out, err := h.present(r.Context(), tasks)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load task users")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, out)
}

func (h *TaskHandler) respondTask(w http.ResponseWriter, r *http.Request, status int, task *domain.Task) {
	out, err := h.present(r.Context(), []*domain.Task{task})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load task users")
		return
	}
	shared.RespondWithJSON(w, r, status, out[0])
}
