// Package storage defines the persistence contracts of the auth engine.
package storage

import "context"

// Repository is the full set of repository operations. Implementations are
// bound either to the connection pool or to a single transaction
type Repository interface {
	UserStorage
	TokenStorage
	BotAuthStorage
	VerificationStorage
}

// Store is a Repository that can open units of work.
type Store interface {
	Repository

	// InTx runs fn inside a single transaction. The transaction is committed
	// if fn returns nil and rolled back otherwise
	InTx(ctx context.Context, fn func(repo Repository) error) error

	// Ping checks the connection
	Ping(ctx context.Context) error

	// Close closes the database connection
	Close() error
}
