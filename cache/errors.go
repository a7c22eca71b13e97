package cache

import "errors"

// Sentinel errors for cache operations.
var (
	// ErrNilCache indicates a nil Cache was provided.
	ErrNilCache = errors.New("cache: cache is nil")

	// ErrNilMask indicates Store was called without a mask.
	ErrNilMask = errors.New("cache: mask is nil")

	// ErrInvalidConfidence indicates a confidence outside [0,1].
	ErrInvalidConfidence = errors.New("cache: confidence must be within [0,1]")
)
