package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteClient manages the connection to SQLite
type SQLiteClient struct {
	db *sql.DB
}

// NewSQLiteClient creates a new SQLite client
func NewSQLiteClient(ctx context.Context, path string) (*SQLiteClient, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newSQLiteClient(db), nil
}

func newSQLiteClient(db *sql.DB) *SQLiteClient {
	return &SQLiteClient{db: db}
}

// Dialect returns the SQLite dialect
func (c *SQLiteClient) Dialect() Dialect {
	return SQLite
}

// Query runs a query on the pool
func (c *SQLiteClient) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	return sqlQuerier{c.db}.Query(ctx, query, args...)
}

// Exec runs a statement on the pool
func (c *SQLiteClient) Exec(ctx context.Context, query string, args ...any) error {
	_, err := c.db.ExecContext(ctx, query, args...)
	return err
}

// ReadOnly runs fn on a dedicated connection with query_only switched on.
// SQLite has no read-only transactions, so the pragma is the guard.
func (c *SQLiteClient) ReadOnly(ctx context.Context, fn func(q Querier) error) error {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return fmt.Errorf("failed to enable query_only: %w", err)
	}
	// The connection goes back to the pool; leave it writable.
	defer func() { _, _ = conn.ExecContext(context.Background(), "PRAGMA query_only = OFF") }()

	return fn(sqlQuerier{conn})
}

// Close closes the database connection
func (c *SQLiteClient) Close() error {
	return c.db.Close()
}

// GetDB returns the underlying database connection
func (c *SQLiteClient) GetDB() *sql.DB {
	return c.db
}
