package pipeline

import "errors"

var (
	// ErrInvalidConfig indicates a configuration value is out of range.
	ErrInvalidConfig = errors.New("pipeline: invalid config")

	// ErrNilExecutor indicates New was called without an executor.
	ErrNilExecutor = errors.New("pipeline: executor is nil")

	// ErrAlreadyStarted indicates Start was called more than once.
	ErrAlreadyStarted = errors.New("pipeline: already started")

	// ErrShutdown indicates the scheduler has been shut down.
	ErrShutdown = errors.New("pipeline: shut down")

	// ErrEmptyMask indicates the executor returned no mask.
	ErrEmptyMask = errors.New("pipeline: executor returned an empty mask")
)
