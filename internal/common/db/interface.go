package db

import "context"

// Database defines the unified interface for relational database operations.
// This abstraction allows switching between drivers without changing
// business logic; the repositories only depend on this interface.
type Database interface {
	Querier

	// Transaction executes a function within a database transaction
	Transaction(ctx context.Context, fn func(tx Transaction) error) error

	// BeginTx starts a new transaction
	BeginTx(ctx context.Context) (Transaction, error)

	// Ping verifies a connection to the database is still alive
	Ping(ctx context.Context) error

	// Close closes the database connection
	Close() error
}

// Transaction defines the operations available within a transaction.
type Transaction interface {
	Querier

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error
}

// Rows abstracts iteration over a multi-row query result.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close() error
	Err() error
}

// Row abstracts a single-row query result.
type Row interface {
	Scan(dest ...interface{}) error
}

// Result abstracts the result of an Exec call.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}
