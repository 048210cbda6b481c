package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasksync/internal/domain"
)

// RegisterRequest defines the payload for the user registration endpoint.
type RegisterRequest struct {
	Name     string `json:"name"     validate:"required,max=100"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest defines the payload for the user login endpoint.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse defines the successful response for authentication endpoints.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// UserResponse is the public view of a user. The password hash is never exposed.
type UserResponse struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
}

func userToResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// UserSummary identifies a user inside another resource.
type UserSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

func userToSummary(u *domain.User) *UserSummary {
	return &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

// UpdateUserRequest defines the payload for PUT /api/users/{id}.
// Absent fields are left unchanged.
type UpdateUserRequest struct {
	Name     *string `json:"name,omitempty"     validate:"omitempty,max=100"`
	Email    *string `json:"email,omitempty"    validate:"omitempty,email"`
	Role     *string `json:"role,omitempty"     validate:"omitempty,oneof=admin member"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=8,max=72"`
}

// toPatch converts the request into a domain patch. It assumes the request
// has passed validation.
func (r UpdateUserRequest) toPatch() (domain.UserPatch, error) {
	patch := domain.UserPatch{
		Name:     r.Name,
		Email:    r.Email,
		Password: r.Password,
	}
	if r.Role != nil {
		role, err := domain.ParseRole(*r.Role)
		if err != nil {
			return domain.UserPatch{}, err
		}
		patch.Role = &role
	}
	return patch, nil
}

// CreateTaskRequest defines the payload for POST /api/tasks.
type CreateTaskRequest struct {
	Title       string `json:"title"       validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	Status      string `json:"status"      validate:"omitempty,oneof=pending in_progress completed"`
	AssignedTo  string `json:"assignedTo"  validate:"required,uuid"`
}

// UpdateTaskRequest defines the payload for PUT /api/tasks/{id}.
// Absent fields are left unchanged.
type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"       validate:"omitempty,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=5000"`
	Status      *string `json:"status,omitempty"      validate:"omitempty,oneof=pending in_progress completed"`
	AssignedTo  *string `json:"assignedTo,omitempty"  validate:"omitempty,uuid"`
}

// toPatch converts the request into a domain patch. It assumes the request
// has passed validation.
func (r UpdateTaskRequest) toPatch() (domain.TaskPatch, error) {
	patch := domain.TaskPatch{
		Title:       r.Title,
		Description: r.Description,
	}
	if r.Status != nil {
		status, err := domain.ParseTaskStatus(*r.Status)
		if err != nil {
			return domain.TaskPatch{}, err
		}
		patch.Status = &status
	}
	if r.AssignedTo != nil {
		id, err := uuid.Parse(*r.AssignedTo)
		if err != nil {
			return domain.TaskPatch{}, domain.NewValidationError("assignedTo", "must be a UUID", domain.ErrInvalidID)
		}
		patch.AssignedTo = &id
	}
	return patch, nil
}

// TaskResponse is the JSON view of a task. Creator and Assignee carry the
// referenced users' names next to the bare IDs.
type TaskResponse struct {
	ID          uuid.UUID         `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Status      domain.TaskStatus `json:"status"`
	CreatedBy   uuid.UUID         `json:"createdBy"`
	AssignedTo  uuid.UUID         `json:"assignedTo"`
	Creator     *UserSummary      `json:"creator,omitempty"`
	Assignee    *UserSummary      `json:"assignee,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

func taskToResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		CreatedBy:   t.CreatedBy,
		AssignedTo:  t.AssignedTo,
		CreatedAt:   t.CreatedAt,
	}
}
