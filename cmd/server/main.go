// Package main implements the entry point for the tasksync server, which
// serves the task REST API and pushes task changes to connected clients
// over websockets.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/phrazzld/tasksync/internal/config"
	"github.com/phrazzld/tasksync/internal/platform/logger"
	"github.com/phrazzld/tasksync/internal/platform/postgres"
)

// errSeedCredentials is returned by -seed-admin when no admin credentials are configured.
var errSeedCredentials = errors.New("TASKSYNC_ADMIN_EMAIL and TASKSYNC_ADMIN_PASSWORD must be set to seed an admin")

func main() {
	migrate := flag.String("migrate", "", "run a migration command (up, down, reset, status, version) and exit")
	seedAdmin := flag.Bool("seed-admin", false, "create the configured admin account if it does not exist and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *migrate, *seedAdmin); err != nil {
		log.Fatalf("tasksync: %v", err)
	}
}

// run wires the application and executes the requested command. With no
// command it serves until ctx is canceled.
func run(ctx context.Context, migrateCommand string, seedAdmin bool) error {
	// A .env file is optional; variables already set in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(logger.LoggerConfig{Level: cfg.Server.LogLevel, Output: os.Stdout})
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	appLogger.Info("server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("database_driver", cfg.Database.Driver))

	db, err := openDatabase(ctx, cfg, appLogger, migrateCommand == "")
	if err != nil {
		return err
	}

	if migrateCommand != "" {
		if db == nil {
			return errors.New("migrations require the postgres driver")
		}
		defer closeDB(db, appLogger)
		return postgres.Migrate(ctx, db, appLogger, migrateCommand, flag.Args()...)
	}

	app, err := newApplication(cfg, appLogger, db)
	if err != nil {
		closeDB(db, appLogger)
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	if seedAdmin {
		defer app.cleanup(context.Background())
		return app.seedAdmin(ctx)
	}

	return app.Run(ctx)
}

// openDatabase connects to Postgres and, when autoMigrate is set, applies
// pending migrations. The memory driver needs no connection and yields a nil *sql.DB.
func openDatabase(ctx context.Context, cfg *config.Config, appLogger *slog.Logger, autoMigrate bool) (*sql.DB, error) {
	if cfg.Database.Driver == "memory" {
		appLogger.Warn("using in-memory storage; data is lost on restart")
		return nil, nil
	}

	db, err := postgres.Open(ctx, cfg.Database, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if !autoMigrate {
		return db, nil
	}
	if err := postgres.Migrate(ctx, db, appLogger, "up"); err != nil {
		closeDB(db, appLogger)
		return nil, err
	}
	return db, nil
}

func closeDB(db *sql.DB, appLogger *slog.Logger) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		appLogger.Error("failed to close database", slog.String("error", err.Error()))
	}
}
