package events

import (
	"context"
	"log/slog"
	"sync"
)

// InMemoryEventEmitter stores registered handlers in memory and passes each
// event to all of them in registration order.
type InMemoryEventEmitter struct {
	handlers []EventHandler
	mu       sync.RWMutex
	logger   *slog.Logger
}

var _ EventEmitter = (*InMemoryEventEmitter)(nil)

// NewInMemoryEventEmitter creates a new instance of InMemoryEventEmitter.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryEventEmitter{
		handlers: make([]EventHandler, 0),
		logger:   logger.With(slog.String("component", "event_emitter")),
	}
}

// RegisterHandler adds a new event handler to receive events.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
	e.logger.Debug("registered new event handler", slog.Int("handler_count", len(e.handlers)))
}

// EmitEvent passes event to every registered handler. A failing handler does
// not stop the others; the first error is returned.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *TaskEvent) error {
	e.mu.RLock()
	handlers := make([]EventHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	if len(handlers) == 0 {
		e.logger.Warn("no handlers registered for event",
			slog.String("event_id", event.ID.String()),
			slog.String("kind", string(event.Kind)))
		return nil
	}

	var firstErr error
	for i, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			e.logger.Error("handler failed to process event",
				slog.String("error", err.Error()),
				slog.Int("handler_index", i),
				slog.String("event_id", event.ID.String()),
				slog.String("kind", string(event.Kind)))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// AuditLogHandler writes one structured log line per task event.
type AuditLogHandler struct {
	logger *slog.Logger
}

// NewAuditLogHandler creates an AuditLogHandler.
func NewAuditLogHandler(logger *slog.Logger) *AuditLogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogHandler{logger: logger.With(slog.String("component", "task_audit"))}
}

// HandleEvent implements EventHandler.
func (h *AuditLogHandler) HandleEvent(ctx context.Context, event *TaskEvent) error {
	h.logger.InfoContext(ctx, "task mutated",
		slog.String("event_id", event.ID.String()),
		slog.String("kind", string(event.Kind)),
		slog.String("task_id", event.Task.ID.String()),
		slog.String("actor_id", event.ActorID.String()),
		slog.String("assigned_to", event.Task.AssignedTo.String()),
		slog.String("status", string(event.Task.Status)))
	return nil
}
