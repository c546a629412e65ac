// Package repo provides one tenant-scoped repository per table. Every
// method accepts tenant_id as its first parameter and every query filters
// on it — no cross-tenant query is ever constructed.
package repo

import (
	"context"
	"database/sql"
)

// DBTX is the subset of *sql.DB that both it and *sql.Tx satisfy, so a
// repository method works identically inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
