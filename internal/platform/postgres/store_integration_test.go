//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasksync/internal/config"
	"github.com/phrazzld/tasksync/internal/domain"
	"github.com/phrazzld/tasksync/internal/platform/logger"
	"github.com/phrazzld/tasksync/internal/platform/postgres"
	"github.com/phrazzld/tasksync/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestTx connects to TASKSYNC_TEST_DATABASE_URL, applies migrations and
// returns a transaction that is rolled back when the test ends.
func openTestTx(t *testing.T) *sql.Tx {
	t.Helper()

	url := os.Getenv("TASKSYNC_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TASKSYNC_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	log, _ := logger.NewTestLogger()
	db, err := postgres.Open(ctx, config.DatabaseConfig{
		URL:             url,
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: 1,
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, postgres.Migrate(ctx, db, log, "up"))

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback() })
	return tx
}

func createUser(t *testing.T, users *postgres.PostgresUserStore, email string, role domain.Role) *domain.User {
	t.Helper()
	user, err := domain.NewUser("User "+email, email, "password123", role)
	require.NoError(t, err)
	user.HashedPassword = "$2a$10$abcdefghijklmnopqrstuv"
	require.NoError(t, users.Create(context.Background(), user))
	return user
}

func TestPostgresStores(t *testing.T) {
	tx := openTestTx(t)
	ctx := context.Background()

	users := postgres.NewPostgresUserStore(tx, nil)
	tasks := postgres.NewPostgresTaskStore(tx, nil)

	suffix := uuid.NewString()[:8]
	admin := createUser(t, users, "admin-"+suffix+"@example.com", domain.RoleAdmin)
	member := createUser(t, users, "member-"+suffix+"@example.com", domain.RoleMember)

	t.Run("users", func(t *testing.T) {
		got, err := users.GetByEmail(ctx, "ADMIN-"+suffix+"@example.com")
		require.NoError(t, err)
		assert.Equal(t, admin.ID, got.ID)
		assert.Equal(t, domain.RoleAdmin, got.Role)

		ids, err := users.ListIDsByRole(ctx, domain.RoleAdmin)
		require.NoError(t, err)
		assert.Contains(t, ids, admin.ID)
		assert.NotContains(t, ids, member.ID)
	})

	task, err := domain.NewTask("Write report", "Q3", "", admin.ID, member.ID)
	require.NoError(t, err)
	task.CreatedAt = task.CreatedAt.Truncate(time.Microsecond)
	require.NoError(t, tasks.Create(ctx, task))

	t.Run("unknown assignee", func(t *testing.T) {
		orphan, err := domain.NewTask("Orphan", "", "", admin.ID, uuid.New())
		require.NoError(t, err)
		assert.ErrorIs(t, tasks.Create(ctx, orphan), store.ErrInvalidEntity)
	})

	t.Run("read and list", func(t *testing.T) {
		got, err := tasks.GetByID(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, task.Title, got.Title)
		assert.True(t, task.CreatedAt.Equal(got.CreatedAt))

		own, err := tasks.List(ctx, store.TaskFilter{AssignedTo: &member.ID})
		require.NoError(t, err)
		require.Len(t, own, 1)
		assert.Equal(t, task.ID, own[0].ID)
	})

	t.Run("update writes mutable fields only", func(t *testing.T) {
		changed := *task
		changed.Status = domain.TaskStatusCompleted
		changed.CreatedBy = member.ID
		require.NoError(t, tasks.Update(ctx, &changed))

		got, err := tasks.GetByID(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusCompleted, got.Status)
		assert.Equal(t, admin.ID, got.CreatedBy)
	})

	t.Run("update user", func(t *testing.T) {
		changed := *member
		changed.Email = "ADMIN-" + suffix + "@example.com"
		assert.ErrorIs(t, users.Update(ctx, &changed), store.ErrEmailExists)

		changed = *member
		changed.Name = "Renamed"
		changed.Email = "renamed-" + suffix + "@example.com"
		changed.UpdatedAt = time.Now().UTC()
		require.NoError(t, users.Update(ctx, &changed))

		got, err := users.GetByID(ctx, member.ID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Name)
		assert.Equal(t, "renamed-"+suffix+"@example.com", got.Email)

		ghost := changed
		ghost.ID = uuid.New()
		ghost.Email = "ghost-" + suffix + "@example.com"
		assert.ErrorIs(t, users.Update(ctx, &ghost), store.ErrUserNotFound)
	})

	t.Run("user with tasks cannot be deleted", func(t *testing.T) {
		// The violation aborts the transaction, so run it inside a savepoint.
		_, err := tx.ExecContext(ctx, `SAVEPOINT delete_in_use`)
		require.NoError(t, err)
		assert.ErrorIs(t, users.Delete(ctx, member.ID), store.ErrUserInUse)
		_, err = tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT delete_in_use`)
		require.NoError(t, err)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, tasks.Delete(ctx, task.ID))
		assert.ErrorIs(t, tasks.Delete(ctx, task.ID), store.ErrTaskNotFound)
		_, err := tasks.GetByID(ctx, task.ID)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})

	t.Run("delete user", func(t *testing.T) {
		require.NoError(t, users.Delete(ctx, member.ID))
		assert.ErrorIs(t, users.Delete(ctx, member.ID), store.ErrUserNotFound)
		_, err := users.GetByID(ctx, member.ID)
		assert.ErrorIs(t, err, store.ErrUserNotFound)
	})
}
