// Package store defines the persistence interface for the market ledger.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"

	"github.com/foldline/market-ledger/model"
)

// Store is the persistence collaborator. PostgreSQL is the source of
// truth; Redis provides a read-through cache layer for the read side.
//
// WithTx is the transaction boundary the settlement engine relies on:
// everything the callback writes commits as one atomic unit or not at
// all, and rows fetched through the Tx's ForUpdate accessors stay locked
// until commit.
type Store interface {
	// --- Users ---

	// CreateUser persists a new user.
	CreateUser(ctx context.Context, u *model.User) error

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, id string) (*model.User, error)

	// SaveUser writes a user's mutable fields back.
	SaveUser(ctx context.Context, u *model.User) error

	// DeleteUser removes a user; the schema cascades their transactions.
	DeleteUser(ctx context.Context, id string) error

	// --- Markets ---

	// CreateMarket persists a new market.
	CreateMarket(ctx context.Context, m *model.Market) error

	// GetMarket retrieves a market by ID.
	GetMarket(ctx context.Context, id string) (*model.Market, error)

	// SaveMarket writes a market's mutable fields back.
	SaveMarket(ctx context.Context, m *model.Market) error

	// DeleteMarket removes a market; the schema cascades its transactions.
	DeleteMarket(ctx context.Context, id string) error

	// ListMarkets returns all markets.
	ListMarkets(ctx context.Context) ([]model.Market, error)

	// --- Immutable transaction ledger ---

	// ListTransactionsByMarket returns all transactions for a market.
	// Order is unspecified.
	ListTransactionsByMarket(ctx context.Context, marketID string) ([]model.Transaction, error)

	// ListTransactionsByUser returns all transactions for a user.
	ListTransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error)

	// --- Transaction boundary ---

	// WithTx runs fn inside one atomic transaction. A non-nil error from
	// fn rolls every write back; otherwise the transaction commits.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the row-locked view the settlement engine works through inside
// WithTx. ForUpdate reads acquire the row for the remainder of the
// transaction, serializing concurrent trades and resolutions that touch
// the same market or user.
type Tx interface {
	GetUserForUpdate(ctx context.Context, id string) (*model.User, error)
	SaveUser(ctx context.Context, u *model.User) error

	GetMarketForUpdate(ctx context.Context, id string) (*model.Market, error)
	SaveMarket(ctx context.Context, m *model.Market) error

	// CreateTransaction appends an immutable ledger record.
	CreateTransaction(ctx context.Context, t *model.Transaction) error

	// ListTransactionsByMarket returns all transactions for a market,
	// as seen inside this transaction.
	ListTransactionsByMarket(ctx context.Context, marketID string) ([]model.Transaction, error)
}
