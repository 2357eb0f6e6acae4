package domain

import "errors"

// Failure taxonomy shared across the synchronization layer. Store errors are
// mapped onto these before they reach a handler; nothing below the handler
// panics or leaks transport errors to the UI.
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("note not found")
	ErrDecodeFailure    = errors.New("document could not be decoded")
	ErrStoreUnavailable = errors.New("local storage unavailable")
)
