package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/iliyamo/repairdesk/internal/logger"
)

// RunInTx executes fn inside a transaction.  The transaction is committed
// when fn returns nil and rolled back otherwise, so either every statement
// issued by fn takes effect or none does.
func RunInTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

// Option customizes a repository.
type Option func(*options)

type options struct {
	now func() time.Time
	log *slog.Logger
}

// WithClock replaces time.Now as the source of created/updated timestamps.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithLogger sets the logger used for faults that are not returned to the
// caller.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.log = l } }

func buildOptions(opts []Option) options {
	o := options{now: time.Now, log: logger.WithComponent("repository")}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func ptr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
