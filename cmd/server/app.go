package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/tasksync/internal/config"
	"github.com/phrazzld/tasksync/internal/events"
	"github.com/phrazzld/tasksync/internal/platform/postgres"
	"github.com/phrazzld/tasksync/internal/presence"
	"github.com/phrazzld/tasksync/internal/service"
	"github.com/phrazzld/tasksync/internal/service/auth"
	"github.com/phrazzld/tasksync/internal/store"
	"github.com/phrazzld/tasksync/internal/store/memstore"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	userStore store.UserStore
	taskStore store.TaskStore

	jwtService  auth.JWTService
	passwords   *auth.BcryptVerifier
	userService service.UserService
	taskService service.TaskService

	registry   *presence.Registry
	dispatcher *events.Dispatcher
	emitter    *events.InMemoryEventEmitter
}

// newApplication creates a new application instance with all dependencies initialized.
// db may be nil, in which case the in-memory stores are used.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		slog.Int("token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes))

	app.passwords = auth.NewBcryptVerifier(cfg.Auth.BCryptCost)

	if db == nil {
		users := memstore.NewUserStore()
		app.userStore = users
		app.taskStore = memstore.NewTaskStore(users)
	} else {
		app.userStore = postgres.NewPostgresUserStore(db, logger)
		app.taskStore = postgres.NewPostgresTaskStore(db, logger)
	}

	app.registry = presence.NewRegistry(logger)
	app.dispatcher = events.NewDispatcher(app.registry, app.userStore, events.DispatcherConfig{
		Workers:      cfg.Realtime.DeliveryWorkers,
		QueueSize:    cfg.Realtime.DeliveryQueueSize,
		WriteTimeout: cfg.Realtime.WriteTimeout(),
	}, logger)

	app.emitter = events.NewInMemoryEventEmitter(logger)
	app.emitter.RegisterHandler(events.NewAuditLogHandler(logger))
	app.emitter.RegisterHandler(app.dispatcher)

	app.userService = service.NewUserService(app.userStore, app.passwords, app.passwords, logger)
	app.taskService, err = service.NewTaskService(
		app.taskStore,
		service.NewUserDirectory(app.userStore),
		app.emitter,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize task service: %w", err)
	}

	return app, nil
}

// Run starts event delivery and serves HTTP until ctx is canceled.
func (app *application) Run(ctx context.Context) error {
	app.dispatcher.Start()
	return app.startHTTPServer(ctx, app.setupRouter())
}

// seedAdmin creates the configured admin account. It is a no-op when the
// email is already registered.
func (app *application) seedAdmin(ctx context.Context) error {
	admin := app.config.Admin
	if admin.Email == "" || admin.Password == "" {
		return errSeedCredentials
	}

	created, err := app.userService.EnsureAdmin(ctx, admin.Name, admin.Email, admin.Password)
	if err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}
	if created {
		app.logger.Info("admin account created", slog.String("email", admin.Email))
	}
	return nil
}

// cleanup releases resources in reverse order of construction. ctx bounds
// how long queued events may take to drain.
func (app *application) cleanup(ctx context.Context) {
	app.logger.Info("cleaning up application resources")

	if err := app.dispatcher.Stop(ctx); err != nil {
		app.logger.Warn("event dispatcher did not drain cleanly", slog.String("error", err.Error()))
	}
	app.registry.Close()
	closeDB(app.db, app.logger)
}
