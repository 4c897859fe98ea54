package db

import (
	"context"
	"database/sql"
)

// Rows is a result set being read.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Err() error
	Close() error
}

// Querier runs a query and returns its rows.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

// Client is a connection to one SQL store.
type Client interface {
	Querier
	Dialect() Dialect
	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, query string, args ...any) error
	// ReadOnly runs fn with a querier that cannot modify the store. Rows
	// must be consumed before fn returns.
	ReadOnly(ctx context.Context, fn func(q Querier) error) error
	Close() error
}

// sqlQuerier adapts the database/sql query methods shared by *sql.DB,
// *sql.Tx and *sql.Conn.
type sqlQuerier struct {
	q interface {
		QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	}
}

func (s sqlQuerier) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
