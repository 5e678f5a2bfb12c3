package model

import "errors"

var (
	// ErrNotFound is returned when a referenced user, market, or
	// transaction record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInsufficientBalance is returned when a trade's cost exceeds the
	// buyer's balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrMarketResolved is returned when a trade or a second resolution
	// targets a market that has already been resolved.
	ErrMarketResolved = errors.New("market already resolved")

	// ErrInvalidAmount is returned for non-positive share amounts.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrInvalidSide is returned when a side is neither YES nor NO.
	ErrInvalidSide = errors.New("side must be YES or NO")

	// ErrInvalidBalance is returned when creating a user with a negative
	// starting balance.
	ErrInvalidBalance = errors.New("balance cannot be negative")

	// ErrUsernameTaken is returned when creating a user whose username
	// already exists.
	ErrUsernameTaken = errors.New("username already taken")
)
