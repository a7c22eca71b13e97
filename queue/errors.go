package queue

import "errors"

// ErrInvalidCapacity indicates a non-positive queue capacity.
var ErrInvalidCapacity = errors.New("queue: capacity must be positive")
