package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationsDir = "migrations"

// MigrationCommands lists the goose commands Migrate accepts.
var MigrationCommands = []string{"up", "down", "reset", "status", "version"}

// slogGooseLogger adapts the goose logger interface to slog.
type slogGooseLogger struct {
	logger *slog.Logger
}

// Printf forwards goose progress messages at INFO.
func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

// Fatalf logs at ERROR. It does not exit; the error is returned to the caller.
func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

// Migrate runs a goose command against the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB, logger *slog.Logger, command string, args ...string) error {
	if !isMigrationCommand(command) {
		return fmt.Errorf("unknown migration command %q", command)
	}

	log := logger.With(slog.String("component", "migrations"), slog.String("command", command))

	goose.SetBaseFS(migrationFS)
	goose.SetLogger(&slogGooseLogger{logger: log})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	log.Info("running migrations")
	if err := goose.RunContext(ctx, command, db, migrationsDir, args...); err != nil {
		log.Error("migration failed", slog.String("error", err.Error()))
		return fmt.Errorf("migration %s failed: %w", command, err)
	}
	log.Info("migrations finished")
	return nil
}

func isMigrationCommand(command string) bool {
	for _, c := range MigrationCommands {
		if c == command {
			return true
		}
	}
	return false
}
