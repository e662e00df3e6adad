package dbx

import (
	"context"
	"database/sql"
	"sync"
)

// Runner gives services a connection handle and a unit-of-work boundary
// without tying them to a concrete backend.
type Runner interface {
	// Conn returns the handle repositories use outside a transaction.
	Conn() DBTX
	// WithTx runs fn as a single unit of work.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}

// SQLRunner is a Runner over a *sql.DB.
type SQLRunner struct {
	db *sql.DB
}

func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

func (r *SQLRunner) Conn() DBTX {
	return r.db
}

func (r *SQLRunner) WithTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	return WithTx(ctx, r.db, nil, fn)
}

func (r *SQLRunner) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SerialRunner is a Runner for backends that keep state in process memory.
// Units of work are serialised and receive a nil DBTX; there is no rollback.
type SerialRunner struct {
	mu sync.Mutex
}

func NewSerialRunner() *SerialRunner {
	return &SerialRunner{}
}

func (r *SerialRunner) Conn() DBTX {
	return nil
}

func (r *SerialRunner) WithTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, nil)
}

func (r *SerialRunner) Ping(context.Context) error {
	return nil
}
