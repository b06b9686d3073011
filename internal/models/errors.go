package models

import "errors"

// Client errors
var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInsufficientHolding = errors.New("insufficient holding")
	ErrInvalidTradeType    = errors.New("invalid transaction type")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrConflict            = errors.New("already exists")
	ErrUnauthorized        = errors.New("invalid username or password")
	ErrForbidden           = errors.New("forbidden")
)

// ErrFeedUnavailable is returned by the price feed on transport, status or payload failures.
// It is recoverable: the sync loop skips the cycle.
var ErrFeedUnavailable = errors.New("price feed unavailable")

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
