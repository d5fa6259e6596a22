// Package store implements the shared queue tables on Postgres. Every
// mutation is a single-row statement; cross-row coordination is left to the
// callers, matching the original store contract.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"officedj/internal/core"
)

// DB is the subset of *pgxpool.Pool the store needs. It can be mocked for
// testing.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Publisher pushes row-change notifications to the realtime channel after a
// successful mutation. A nil publisher disables fan-out (used in tests).
type Publisher interface {
	Publish(ctx context.Context, event core.ChangeEvent)
}
