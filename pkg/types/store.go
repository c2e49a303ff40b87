package types

import "database/sql"

// Tx is the transactional handle every store operation runs in. *sql.Tx
// satisfies it. Operations never commit or roll back; the caller owns the
// transaction boundary.
type Tx interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Store defines backend-agnostic access to the entity store. Callers attach
// to a backend, run operations inside Update or View, and detach when done.
type Store interface {
	// Attach connects the Store to the backend described by config and
	// migrates the schema. Returns ErrAlreadyAttached if already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent.
	Detach() error

	// Update runs fn in a read-write transaction. The transaction commits
	// when fn returns nil and rolls back otherwise.
	Update(fn func(tx Tx) error) error

	// View runs fn in a transaction that is always rolled back.
	View(fn func(tx Tx) error) error
}
