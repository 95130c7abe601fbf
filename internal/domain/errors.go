package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrIntegrity    = errors.New("store integrity violation")
	ErrInvalidTrade = errors.New("invalid trade parameters")
	ErrLockHeld     = errors.New("lock already held")
	ErrLockLost     = errors.New("lock no longer held")
)
