package adapter

import (
	"errors"
)

var (
	// ErrNotFound is returned when a requested record does not exist or is owned by another user.
	ErrNotFound = errors.New("resource not found")

	// ErrLimitExceeded is returned when a write would exceed a store limit.
	ErrLimitExceeded = errors.New("store limit exceeded")
)
