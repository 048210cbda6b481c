package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasksync/internal/domain"
)

// EventKind names the mutation a TaskEvent describes.
type EventKind string

const (
	KindTaskCreated EventKind = "task_created"
	KindTaskUpdated EventKind = "task_updated"
	KindTaskDeleted EventKind = "task_deleted"
)

// TaskEvent describes one successful task mutation.
type TaskEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID

	Kind EventKind

	// Task is the state after the mutation. For deletions it is the snapshot
	// taken just before removal.
	Task domain.Task

	// ActorID is the identity that performed the mutation.
	ActorID uuid.UUID

	// PreviousAssignee is set when an update moved the task to someone else.
	PreviousAssignee *uuid.UUID

	OccurredAt time.Time
}

// NewTaskEvent creates an event holding a copy of task.
func NewTaskEvent(kind EventKind, task *domain.Task, actorID uuid.UUID) *TaskEvent {
	return &TaskEvent{
		ID:         uuid.New(),
		Kind:       kind,
		Task:       *task,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
	}
}

// WithPreviousAssignee records a reassignment away from prev. It is a no-op
// when prev is the current assignee.
func (e *TaskEvent) WithPreviousAssignee(prev uuid.UUID) *TaskEvent {
	if prev != e.Task.AssignedTo && prev != uuid.Nil {
		e.PreviousAssignee = &prev
	}
	return e
}

// Frame is the JSON message pushed to realtime clients.
type Frame struct {
	Type        EventKind         `json:"type"`
	EventID     uuid.UUID         `json:"eventId"`
	TaskID      uuid.UUID         `json:"taskId"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Status      domain.TaskStatus `json:"status"`
	AssignedTo  uuid.UUID         `json:"assignedTo"`
	CreatedBy   uuid.UUID         `json:"createdBy"`
	CreatedAt   time.Time         `json:"createdAt"`
	ActorID     uuid.UUID         `json:"actorId"`
	OccurredAt  time.Time         `json:"occurredAt"`
}

// Frame builds the wire representation of the event.
func (e *TaskEvent) Frame() Frame {
	return Frame{
		Type:        e.Kind,
		EventID:     e.ID,
		TaskID:      e.Task.ID,
		Title:       e.Task.Title,
		Description: e.Task.Description,
		Status:      e.Task.Status,
		AssignedTo:  e.Task.AssignedTo,
		CreatedBy:   e.Task.CreatedBy,
		CreatedAt:   e.Task.CreatedAt,
		ActorID:     e.ActorID,
		OccurredAt:  e.OccurredAt,
	}
}

// MarshalFrame encodes the event's Frame as JSON.
func (e *TaskEvent) MarshalFrame() ([]byte, error) {
	return json.Marshal(e.Frame())
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *TaskEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *TaskEvent) error
}
