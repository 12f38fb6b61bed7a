// Package postgres implements the PostgreSQL persistence layer for the
// practice and reward core.
//
// Repositories never open transactions themselves. Command handlers wrap a
// unit of work in Connection.WithinTx, which stores the pgx.Tx on the context;
// every repository call made with that context joins the transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studypets/studypets-core/internal/domain/shared"
)

// ErrConnectionClosed is returned after Close.
var ErrConnectionClosed = errors.New("postgres: connection pool is closed")

// ══════════════════════════════════════════════════════════════════════════════
// CONNECTION POOL
// ══════════════════════════════════════════════════════════════════════════════

// PoolOptions overrides pool settings a URL cannot carry. Zero fields keep
// the URL's value, then the defaults.
type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Connection is a pgx pool that knows about context-carried transactions.
type Connection struct {
	pool   *pgxpool.Pool
	closed atomic.Bool
}

// NewConnectionFromURL opens a pool and pings it once.
func NewConnectionFromURL(ctx context.Context, databaseURL string, opts PoolOptions) (*Connection, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = firstPositive(opts.MaxConns, poolConfig.MaxConns, 10)
	poolConfig.MinConns = firstPositive(opts.MinConns, poolConfig.MinConns, 2)
	poolConfig.MaxConnLifetime = firstPositive(opts.MaxConnLifetime, time.Hour)
	poolConfig.MaxConnIdleTime = firstPositive(opts.MaxConnIdleTime, 30*time.Minute)
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: failed to ping database: %w", err)
	}
	return &Connection{pool: pool}, nil
}

func firstPositive[T int32 | time.Duration](vals ...T) T {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

// Close closes the pool. Calling it twice is safe.
func (c *Connection) Close() {
	if c.closed.CompareAndSwap(false, true) {
		c.pool.Close()
	}
}

// Ping checks if the database answers.
func (c *Connection) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	return c.pool.Ping(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSACTIONS
// ══════════════════════════════════════════════════════════════════════════════

type txKey struct{}

// WithinTx runs fn inside one read-committed transaction. The transaction
// travels on the context handed to fn; a nested call with that context joins
// it instead of opening another. Serialization failures and deadlocks come
// back as shared.ErrConcurrentModification so callers can retry the whole
// unit. Row locks (SELECT ... FOR UPDATE) and advisory locks taken by the
// repositories provide the isolation the operations need.
func (c *Connection) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	if c.closed.Load() {
		return mapError(ErrConnectionClosed)
	}
	err := pgx.BeginTxFunc(ctx, c.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	return mapError(err)
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERY HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// querier is what both *pgxpool.Pool and pgx.Tx provide.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// querier returns the transaction carried by ctx, or the pool.
func (c *Connection) querier(ctx context.Context) (querier, error) {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx, nil
	}
	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}
	return c.pool, nil
}

// Exec runs a statement that returns no rows.
func (c *Connection) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q, err := c.querier(ctx)
	if err != nil {
		return pgconn.CommandTag{}, mapError(err)
	}
	tag, err := q.Exec(ctx, sql, args...)
	return tag, mapError(err)
}

// Query runs a statement that returns rows.
func (c *Connection) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	q, err := c.querier(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	rows, err := q.Query(ctx, sql, args...)
	return rows, mapError(err)
}

// QueryRow runs a statement that returns at most one row.
func (c *Connection) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q, err := c.querier(ctx)
	if err != nil {
		return errRow{err: mapError(err)}
	}
	return q.QueryRow(ctx, sql, args...)
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

// ══════════════════════════════════════════════════════════════════════════════
// ERROR HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsUniqueViolation reports a unique_violation (23505).
func IsUniqueViolation(err error) bool { return pgCode(err) == "23505" }

// IsForeignKeyViolation reports a foreign_key_violation (23503).
func IsForeignKeyViolation(err error) bool { return pgCode(err) == "23503" }

// IsNoRows reports pgx.ErrNoRows.
func IsNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

// IsSerializationFailure reports errors the server resolves by aborting one
// side: serialization_failure and deadlock_detected.
func IsSerializationFailure(err error) bool {
	code := pgCode(err)
	return code == "40001" || code == "40P01"
}

// mapError turns driver errors that are safe to retry into shared error kinds.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if IsSerializationFailure(err) {
		return fmt.Errorf("%w: %v", shared.ErrConcurrentModification, err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || errors.Is(err, ErrConnectionClosed) {
		return fmt.Errorf("%w: %v", shared.ErrUnavailable, err)
	}
	return err
}
