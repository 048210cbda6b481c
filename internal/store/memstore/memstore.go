// Package memstore provides in-memory implementations of the store interfaces.
// Every read returns a copy so callers can never mutate stored state.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/tasksync/internal/domain"
	"github.com/phrazzld/tasksync/internal/store"
)

// TaskStore is an in-memory store.TaskStore.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]domain.Task
	users *UserStore
}

var _ store.TaskStore = (*TaskStore)(nil)

// NewTaskStore creates an empty TaskStore. If users is non-nil, Create and Update
// reject references to unknown users and users.Delete refuses to remove a user
// that tasks still reference, the same way the foreign keys in Postgres do.
func NewTaskStore(users *UserStore) *TaskStore {
	s := &TaskStore{
		tasks: make(map[uuid.UUID]domain.Task),
		users: users,
	}
	if users != nil {
		users.mu.Lock()
		users.tasks = s
		users.mu.Unlock()
	}
	return s
}

// referencesLocked reports whether any task was created by or is assigned to
// userID. The caller must hold s.mu.
func (s *TaskStore) referencesLocked(userID uuid.UUID) bool {
	for _, task := range s.tasks {
		if task.CreatedBy == userID || task.AssignedTo == userID {
			return true
		}
	}
	return false
}

// checkRefs must be called with s.mu held. Locks are always taken tasks then users.
func (s *TaskStore) checkRefs(task *domain.Task) error {
	if s.users == nil {
		return nil
	}
	if !s.users.exists(task.CreatedBy) || !s.users.exists(task.AssignedTo) {
		return store.NewStoreError("task", "write", "referenced user does not exist", store.ErrInvalidEntity)
	}
	return nil
}

// Create implements store.TaskStore.Create.
func (s *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkRefs(task); err != nil {
		return err
	}

	if _, ok := s.tasks[task.ID]; ok {
		return store.NewStoreError("task", "create", "task already exists", store.ErrDuplicate)
	}
	s.tasks[task.ID] = *task
	return nil
}

// GetByID implements store.TaskStore.GetByID.
func (s *TaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return &task, nil
}

// List implements store.TaskStore.List.
func (s *TaskStore) List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	s.mu.RLock()
	result := make([]*domain.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		if filter.Matches(&task) {
			t := task
			result = append(result, &t)
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Update implements store.TaskStore.Update.
func (s *TaskStore) Update(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkRefs(task); err != nil {
		return err
	}

	existing, ok := s.tasks[task.ID]
	if !ok {
		return store.ErrTaskNotFound
	}
	existing.Title = task.Title
	existing.Description = task.Description
	existing.Status = task.Status
	existing.AssignedTo = task.AssignedTo
	s.tasks[task.ID] = existing
	return nil
}

// Delete implements store.TaskStore.Delete.
func (s *TaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return store.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

// UserStore is an in-memory store.UserStore.
type UserStore struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]domain.User
	byEmail map[string]uuid.UUID
	tasks   *TaskStore
}

var _ store.UserStore = (*UserStore)(nil)

// NewUserStore creates an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{
		users:   make(map[uuid.UUID]domain.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (s *UserStore) exists(id uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[id]
	return ok
}

// Create implements store.UserStore.Create.
func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	email := strings.ToLower(user.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return store.ErrEmailExists
	}
	stored := *user
	stored.Password = ""
	s.users[user.ID] = stored
	s.byEmail[email] = user.ID
	return nil
}

// GetByID implements store.UserStore.GetByID.
func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return &user, nil
}

// GetByEmail implements store.UserStore.GetByEmail.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	user := s.users[id]
	return &user, nil
}

// List implements store.UserStore.List.
func (s *UserStore) List(ctx context.Context) ([]*domain.User, error) {
	s.mu.RLock()
	result := make([]*domain.User, 0, len(s.users))
	for _, user := range s.users {
		u := user
		result = append(result, &u)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].Name == result[j].Name {
			return result[i].Email < result[j].Email
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// Update implements store.UserStore.Update.
func (s *UserStore) Update(ctx context.Context, user *domain.User) error {
	email := strings.ToLower(user.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return store.ErrUserNotFound
	}
	if owner, taken := s.byEmail[email]; taken && owner != user.ID {
		return store.ErrEmailExists
	}

	delete(s.byEmail, strings.ToLower(existing.Email))
	existing.Name = user.Name
	existing.Email = user.Email
	existing.Role = user.Role
	existing.HashedPassword = user.HashedPassword
	existing.UpdatedAt = user.UpdatedAt
	s.users[user.ID] = existing
	s.byEmail[email] = user.ID
	return nil
}

// Delete implements store.UserStore.Delete.
func (s *UserStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.RLock()
	tasks := s.tasks
	s.mu.RUnlock()

	if tasks != nil {
		tasks.mu.RLock()
		defer tasks.mu.RUnlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return store.ErrUserNotFound
	}
	if tasks != nil && tasks.referencesLocked(id) {
		return store.ErrUserInUse
	}
	delete(s.users, id)
	delete(s.byEmail, strings.ToLower(user.Email))
	return nil
}

// ListIDsByRole implements store.UserStore.ListIDsByRole.
func (s *UserStore) ListIDsByRole(ctx context.Context, role domain.Role) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []uuid.UUID
	for id, user := range s.users {
		if user.Role == role {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
