package intercept

import "errors"

// Interception errors.
var (
	// ErrInvalidMethodRef is returned when a method reference cannot be parsed.
	ErrInvalidMethodRef = errors.New("invalid method reference")

	// ErrHandlerNil is returned when registering a nil handler.
	ErrHandlerNil = errors.New("handler cannot be nil")
)
