package service_test

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/tasksync/internal/domain"
	"github.com/phrazzld/tasksync/internal/events"
	"github.com/phrazzld/tasksync/internal/store"
	"github.com/stretchr/testify/mock"
)

// MockEventEmitter mocks the events.EventEmitter interface
type MockEventEmitter struct {
	mock.Mock
}

func (m *MockEventEmitter) EmitEvent(ctx context.Context, event *events.TaskEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockTaskStore mocks the store.TaskStore interface
type MockTaskStore struct {
	mock.Mock
}

func (m *MockTaskStore) Create(ctx context.Context, task *domain.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Task), args.Error(1)
}

func (m *MockTaskStore) List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Task), args.Error(1)
}

func (m *MockTaskStore) Update(ctx context.Context, task *domain.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockDirectory mocks the service.IdentityDirectory interface
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) Resolve(ctx context.Context, id uuid.UUID) (bool, domain.Role, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Get(1).(domain.Role), args.Error(2)
}

// recordingEmitter keeps every emitted event.
type recordingEmitter struct {
	mu     sync.Mutex
	events []*events.TaskEvent
}

func (r *recordingEmitter) EmitEvent(ctx context.Context, event *events.TaskEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingEmitter) all() []*events.TaskEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*events.TaskEvent, len(r.events))
	copy(out, r.events)
	return out
}
