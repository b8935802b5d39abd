// Package apperr defines the sentinel errors shared across component
// boundaries. They map onto the failure classes the API layer distinguishes:
// missing data, invalid user input, an exhausted candidate pool, and
// transient transport state.
package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrNoRecipient  = errors.New("no recipient found")
	ErrNotConnected = errors.New("not connected")
	ErrClosed       = errors.New("closed")
	ErrTimeout      = errors.New("timed out")
)
