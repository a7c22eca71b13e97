package frame

import "errors"

// Sentinel errors for frame operations.
var (
	// ErrEmptyImage is returned when an image is nil or has empty bounds.
	ErrEmptyImage = errors.New("frame: image is nil or empty")

	// ErrInvalidResolution is returned for non-positive target dimensions.
	ErrInvalidResolution = errors.New("frame: resolution must be positive")

	// ErrMaskSize is returned when mask data does not match its dimensions.
	ErrMaskSize = errors.New("frame: mask data does not match dimensions")
)
