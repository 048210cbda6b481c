package events

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasksync/internal/domain"
	"github.com/phrazzld/tasksync/internal/presence"
)

// Errors returned by Dispatcher.HandleEvent.
var (
	ErrDispatcherStopped = errors.New("event dispatcher is stopped")
	ErrQueueFull         = errors.New("event dispatch queue is full")
)

// HandleSource resolves identities to their currently open handles.
type HandleSource interface {
	HandlesOfAll(identities []uuid.UUID) []presence.Handle
}

// AdminLister lists the identities holding a role.
type AdminLister interface {
	ListIDsByRole(ctx context.Context, role domain.Role) ([]uuid.UUID, error)
}

// DispatchError describes one failed push to one handle. It is reported to the
// dispatcher's error handler and never returned to the mutation's caller.
type DispatchError struct {
	HandleID string
	EventID  uuid.UUID
	Kind     EventKind
	Err      error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s (event %s) to handle %s: %v", e.Kind, e.EventID, e.HandleID, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// DispatcherConfig holds configuration for the dispatcher.
type DispatcherConfig struct {
	// Workers is the number of delivery goroutines. Events for the same task
	// always go to the same worker, so they reach a given handle in order.
	Workers int

	// QueueSize is the total buffered capacity, split evenly across workers.
	QueueSize int

	// WriteTimeout bounds each push to a single handle.
	WriteTimeout time.Duration
}

// DefaultDispatcherConfig returns a DispatcherConfig with reasonable defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers:      4,
		QueueSize:    256,
		WriteTimeout: 2 * time.Second,
	}
}

// Dispatcher fans task events out to the open handles of their audience.
// HandleEvent only enqueues, so a mutation never waits on delivery.
type Dispatcher struct {
	handles    HandleSource
	admins     AdminLister
	config     DispatcherConfig
	queues     []chan *TaskEvent
	wg         sync.WaitGroup
	mu         sync.RWMutex
	started    bool
	stopped    bool
	logger     *slog.Logger
	errHandler func(err *DispatchError)
}

var _ EventHandler = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher. Call Start to begin delivery.
func NewDispatcher(handles HandleSource, admins AdminLister, config DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if handles == nil || admins == nil {
		panic("dispatcher requires a handle source and an admin lister")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "event_dispatcher"))

	defaults := DefaultDispatcherConfig()
	if config.Workers <= 0 {
		logger.Warn("invalid worker count specified, using default",
			slog.Int("specified_count", config.Workers),
			slog.Int("default_count", defaults.Workers))
		config.Workers = defaults.Workers
	}
	if config.QueueSize < config.Workers {
		config.QueueSize = config.Workers
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}

	perWorker := config.QueueSize / config.Workers
	queues := make([]chan *TaskEvent, config.Workers)
	for i := range queues {
		queues[i] = make(chan *TaskEvent, perWorker)
	}

	d := &Dispatcher{
		handles: handles,
		admins:  admins,
		config:  config,
		queues:  queues,
		logger:  logger,
	}
	d.errHandler = func(err *DispatchError) {
		d.logger.Warn("event dispatch failed",
			slog.String("handle_id", err.HandleID),
			slog.String("event_id", err.EventID.String()),
			slog.String("kind", string(err.Kind)),
			slog.String("error", err.Err.Error()))
	}
	return d
}

// SetErrorHandler replaces the default handler, which logs each DispatchError.
// It must be called before Start.
func (d *Dispatcher) SetErrorHandler(handler func(err *DispatchError)) {
	d.errHandler = handler
}

// Start launches the delivery workers. Calling it twice is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true

	for i, q := range d.queues {
		d.wg.Add(1)
		go d.worker(i, q)
	}
	d.logger.Info("event dispatcher started",
		slog.Int("workers", d.config.Workers),
		slog.Int("queue_size", d.config.QueueSize),
		slog.Duration("write_timeout", d.config.WriteTimeout))
}

// HandleEvent enqueues event for delivery without blocking.
// It returns ErrQueueFull when the event's worker is saturated and
// ErrDispatcherStopped after Stop.
func (d *Dispatcher) HandleEvent(ctx context.Context, event *TaskEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return ErrDispatcherStopped
	}

	q := d.queues[d.shard(event.Task.ID)]
	select {
	case q <- event:
		return nil
	default:
		return fmt.Errorf("%w: capacity %d reached", ErrQueueFull, cap(q))
	}
}

func (d *Dispatcher) shard(taskID uuid.UUID) int {
	h := fnv.New32a()
	_, _ = h.Write(taskID[:])
	return int(h.Sum32() % uint32(len(d.queues)))
}

// Stop rejects new events, lets workers drain what is already queued, and
// waits for them until ctx is done.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	started := d.started
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("event dispatcher stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for dispatcher workers: %w", ctx.Err())
	}
}

func (d *Dispatcher) worker(id int, queue <-chan *TaskEvent) {
	defer d.wg.Done()

	d.logger.Debug("starting worker", slog.Int("worker_id", id))
	for event := range queue {
		d.deliver(event)
	}
	d.logger.Debug("queue closed, stopping worker", slog.Int("worker_id", id))
}

// deliver pushes event to every handle of its audience and waits until each
// push has finished or hit the write timeout. It returns the number of
// handles that received the event.
func (d *Dispatcher) deliver(event *TaskEvent) int {
	log := d.logger.With(
		slog.String("event_id", event.ID.String()),
		slog.String("kind", string(event.Kind)),
		slog.String("task_id", event.Task.ID.String()))

	lookupCtx, cancel := context.WithTimeout(context.Background(), d.config.WriteTimeout)
	admins, err := d.admins.ListIDsByRole(lookupCtx, domain.RoleAdmin)
	cancel()
	if err != nil {
		// Still deliver to the assignee.
		log.Error("failed to list admins for event audience", slog.String("error", err.Error()))
	}

	assignees := []uuid.UUID{event.Task.AssignedTo}
	if event.PreviousAssignee != nil {
		assignees = append(assignees, *event.PreviousAssignee)
	}
	audience := Audience(admins, event.ActorID, assignees...)

	handles := d.handles.HandlesOfAll(audience)
	if len(handles) == 0 {
		log.Debug("no open handles in audience", slog.Int("audience", len(audience)))
		return 0
	}

	msg, err := event.MarshalFrame()
	if err != nil {
		log.Error("failed to encode event frame", slog.String("error", err.Error()))
		return 0
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered int
	)
	for _, h := range handles {
		wg.Add(1)
		go func(h presence.Handle) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), d.config.WriteTimeout)
			defer cancel()

			if err := h.Send(ctx, msg); err != nil {
				d.errHandler(&DispatchError{
					HandleID: h.ID(),
					EventID:  event.ID,
					Kind:     event.Kind,
					Err:      err,
				})
				return
			}
			mu.Lock()
			delivered++
			mu.Unlock()
		}(h)
	}
	wg.Wait()

	log.Debug("event dispatched",
		slog.Int("audience", len(audience)),
		slog.Int("handles", len(handles)),
		slog.Int("delivered", delivered))
	return delivered
}

// Audience returns every admin plus the given assignees, without duplicates,
// excluding actor.
func Audience(admins []uuid.UUID, actor uuid.UUID, assignees ...uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(admins)+len(assignees))
	audience := make([]uuid.UUID, 0, len(admins)+len(assignees))

	add := func(id uuid.UUID) {
		if id == uuid.Nil || id == actor {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		audience = append(audience, id)
	}

	for _, id := range admins {
		add(id)
	}
	for _, id := range assignees {
		add(id)
	}
	return audience
}
