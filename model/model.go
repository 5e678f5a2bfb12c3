// Package model defines the core domain types shared across the ledger.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a position in a binary market.
type Side string

const (
	// SideYes bets that the market resolves true.
	SideYes Side = "YES"

	// SideNo bets that the market resolves false.
	SideNo Side = "NO"
)

// Valid reports whether s is one of the two recognized sides.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// Wins reports whether a position on side s pays out under the given
// resolution outcome (YES wins a true outcome, NO wins a false one).
func (s Side) Wins(outcome bool) bool {
	return (s == SideYes) == outcome
}

// Bool maps the side onto the persisted up_or_down column: YES ⇔ true.
func (s Side) Bool() bool {
	return s == SideYes
}

// SideFromBool is the inverse of Side.Bool.
func SideFromBool(upOrDown bool) Side {
	if upOrDown {
		return SideYes
	}
	return SideNo
}

// Market is the state of one binary prediction market.
//
// YesShares and NoShares only grow while the market is open. Price caches
// the implied YES probability and is recomputed by whoever mutates the
// share columns — it is derived state, never an input to a new trade
// computation. Resolution is nil while the market is open and is set
// exactly once; a resolved market never transitions again.
type Market struct {
	ID          string           `json:"id" db:"id"`
	Title       string           `json:"title" db:"title"`
	Description string           `json:"description" db:"description"`
	Liquidity   decimal.Decimal  `json:"liquidity" db:"liquidity"` // LMSR liquidity parameter b, > 0
	YesShares   decimal.Decimal  `json:"yes_shares" db:"yes_shares"`
	NoShares    decimal.Decimal  `json:"no_shares" db:"no_shares"`
	Price       decimal.Decimal  `json:"price" db:"price"` // cached implied YES probability
	Resolution  *bool            `json:"resolution" db:"resolution"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
}

// Resolved reports whether the market has reached its terminal state.
func (m *Market) Resolved() bool {
	return m.Resolution != nil
}

// Shares returns the outstanding share count on the given side.
func (m *Market) Shares(s Side) decimal.Decimal {
	if s == SideYes {
		return m.YesShares
	}
	return m.NoShares
}

// User is an account that holds balance and buys exposure.
// Balance is never negative at any observable time.
type User struct {
	ID       string          `json:"id" db:"id"`
	Username string          `json:"username" db:"username"`
	Balance  decimal.Decimal `json:"balance" db:"balance"`
}

// Transaction is an immutable record of shares bought in one direction.
// Once created it is never modified or deleted; resolution payouts are
// computed by summing over these records.
type Transaction struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	MarketID  string          `json:"market_id" db:"market_id"`
	Side      Side            `json:"side" db:"side"`
	Amount    decimal.Decimal `json:"amount" db:"amount"` // shares purchased, > 0
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
