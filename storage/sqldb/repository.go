package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/poiesic/thirteenf/storage"
)

// Repository implements storage.Repository over database/sql.
type Repository struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
	closed  atomic.Bool
}

var _ storage.Repository = (*Repository)(nil)

type options struct {
	maxOpenConns    int
	connectAttempts int
	connectDelay    time.Duration
	logger          *slog.Logger
}

// Option configures Open.
type Option func(*options)

// WithMaxOpenConns caps the connection pool. SQLite always uses one
// connection; the setting applies to PostgreSQL.
func WithMaxOpenConns(n int) Option {
	return func(o *options) {
		o.maxOpenConns = n
	}
}

// WithConnectRetry sets how many times the initial ping is attempted and
// the base delay between attempts. Default is 3 attempts from 1s.
func WithConnectRetry(attempts int, delay time.Duration) Option {
	return func(o *options) {
		o.connectAttempts = attempts
		o.connectDelay = delay
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Open connects to the database, waits for it to answer a ping and
// creates the schema if missing. driver is "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Repository, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	o := &options{
		connectAttempts: 3,
		connectDelay:    time.Second,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	db, err := sql.Open(d.driverName, d.dataSource(dsn))
	if err != nil {
		return nil, err
	}
	if d.singleConn {
		db.SetMaxOpenConns(1)
	} else if o.maxOpenConns > 0 {
		db.SetMaxOpenConns(o.maxOpenConns)
		db.SetMaxIdleConns(o.maxOpenConns)
	}

	logger := o.logger.With("component", "storage", "driver", d.name)
	policy := connectPolicy{attempts: o.connectAttempts, delay: o.connectDelay}
	if err := policy.await(ctx, logger, db.PingContext); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to %s: %w", d.name, err)
	}

	r := &Repository{
		db:      db,
		dialect: d,
		logger:  logger,
	}
	if err := r.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// DB exposes the underlying handle for read-only inspection.
func (r *Repository) DB() *sql.DB {
	return r.db
}

// WithTransaction executes fn within a transaction.
// The transaction is rolled back if fn returns an error or panics.
func (r *Repository) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	if r.closed.Load() {
		return storage.ErrStorageClosed
	}

	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", storage.ErrTransactionFailed, err)
	}

	defer func() {
		if p := recover(); p != nil {
			sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &tx{tx: sqlTx, dialect: r.dialect}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.logger.Error("error rolling back transaction", "err", rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", storage.ErrTransactionFailed, err)
	}
	return nil
}

// Counts returns the number of filings and holdings.
func (r *Repository) Counts(ctx context.Context) (storage.Counts, error) {
	var c storage.Counts
	if r.closed.Load() {
		return c, storage.ErrStorageClosed
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM filings`).Scan(&c.Filings); err != nil {
		return c, err
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM holdings`).Scan(&c.Holdings); err != nil {
		return c, err
	}
	return c, nil
}

// Close closes the database handle.
func (r *Repository) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	return r.db.Close()
}
