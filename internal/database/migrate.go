package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"

	"github.com/iliyamo/repairdesk/internal/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

// Migrate applies all pending schema migrations.  Statements use IF NOT
// EXISTS so a database created before migrations were tracked is adopted
// as-is, and running Migrate again is a no-op.
func Migrate(ctx context.Context, db *sql.DB) error {
	log := logger.WithComponent("migration")
	if err := setupGoose(log); err != nil {
		return err
	}

	from, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}
	if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
		log.Error("migration failed", "error", err)
		return fmt.Errorf("run migrations: %w", err)
	}
	to, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}
	if from != to {
		log.Info("schema migrated", "from_version", from, "to_version", to)
	}
	return nil
}

// Version returns the current schema version.
func Version(ctx context.Context, db *sql.DB) (int64, error) {
	if err := setupGoose(logger.WithComponent("migration")); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, db)
}

func setupGoose(log *slog.Logger) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{log: log})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// gooseLogger routes goose output into slog at debug level.
type gooseLogger struct{ log *slog.Logger }

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...))
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Error(fmt.Sprintf(format, v...))
}
