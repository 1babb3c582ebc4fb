package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrRateLimited    = errors.New("rate limited")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNoSigningKey   = errors.New("no signing key configured")
	ErrSigningFailed  = errors.New("signing failed")
	ErrTradeRejected  = errors.New("trade rejected")
	ErrNoMarketData   = errors.New("no market data")
	ErrNotConnected   = errors.New("feed not connected")
	ErrPositionClosed = errors.New("position already closed")
	ErrLockHeld       = errors.New("lock already held")
	ErrNoFees         = errors.New("no fees to claim")
)
