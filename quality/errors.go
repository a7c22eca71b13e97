package quality

import "errors"

// Configuration errors.
var (
	// ErrInvalidWindow indicates a non-positive history window.
	ErrInvalidWindow = errors.New("quality: window size must be positive")

	// ErrInvalidThreshold indicates a threshold outside [0,1].
	ErrInvalidThreshold = errors.New("quality: threshold must be within [0,1]")

	// ErrInvalidWeight indicates a stability weight outside [0,1] or weights summing past 1.
	ErrInvalidWeight = errors.New("quality: invalid stability weight")
)
