// Package accounts persists the operator accounts allowed to use the dashboard.
package accounts

import (
	"context"
	"errors"
)

var (
	// ErrEmailTaken is returned by Create when the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrNotFound is returned by Get for an unknown email.
	ErrNotFound = errors.New("account not found")
)

// Account is one registered operator. Email is the unique key.
type Account struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"password"`
}

// Store is the account persistence boundary.
type Store interface {
	// List returns all accounts in registration order.
	List(ctx context.Context) ([]Account, error)
	// Get returns the account for email or ErrNotFound.
	Get(ctx context.Context, email string) (Account, error)
	// Create inserts a new account. An existing email yields ErrEmailTaken
	// and leaves the store unchanged.
	Create(ctx context.Context, a Account) error
	// Ping reports whether the backing storage is usable.
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*FileStore)(nil)
)
