package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLClient manages the connection to MySQL
type MySQLClient struct {
	db *sql.DB
}

// NewMySQLClient creates a new MySQL client
func NewMySQLClient(ctx context.Context, connString string) (*MySQLClient, error) {
	db, err := sql.Open("mysql", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &MySQLClient{db: db}, nil
}

// Dialect returns the MySQL dialect
func (c *MySQLClient) Dialect() Dialect {
	return MySQL
}

// Query runs a query on the pool
func (c *MySQLClient) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	return sqlQuerier{c.db}.Query(ctx, query, args...)
}

// Exec runs a statement on the pool
func (c *MySQLClient) Exec(ctx context.Context, query string, args ...any) error {
	_, err := c.db.ExecContext(ctx, query, args...)
	return err
}

// ReadOnly runs fn inside a read-only transaction that is always rolled back
func (c *MySQLClient) ReadOnly(ctx context.Context, fn func(q Querier) error) error {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("failed to begin read-only transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return fn(sqlQuerier{tx})
}

// Close closes the database connection
func (c *MySQLClient) Close() error {
	return c.db.Close()
}

