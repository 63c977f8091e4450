package repositories

import (
	"context"
	"errors"

	"github.com/upb/order-processing/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context, opts TxOptions) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, opts TxOptions, fn func(ctx context.Context) error) error
}

// TxOptions configures a transaction
type TxOptions struct {
	ReadOnly bool
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
}

// UserRepository reads accounts from the credential store. It never writes.
type UserRepository interface {
	// GetByEmail retrieves a user with roles and claims by email (case-insensitive)
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByID retrieves a user with roles and claims by ID
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// Repositories groups all repository instances
type Repositories struct {
	Users UserRepository
}
