package domain

import "errors"

// Every operation failure wraps exactly one of these kinds so integrators
// can tell "too early" from "not authorized" from "conflicting listing"
// with errors.Is. A failed call has no partial effect.
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrConflict          = errors.New("conflicting listing exists")
	ErrInvalidBid        = errors.New("invalid bid")
	ErrInvalidState      = errors.New("invalid listing state")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSelfTrade         = errors.New("self trade not allowed")
	ErrReentrant         = errors.New("reentrant call")
)
