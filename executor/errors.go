package executor

import "errors"

var (
	// ErrContextStart indicates the designated context could not be initialized.
	ErrContextStart = errors.New("executor: context start failed")

	// ErrInferencePanic indicates the executor panicked during inference.
	ErrInferencePanic = errors.New("executor: inference panicked")

	// ErrWorkerStopped indicates the worker is not accepting requests.
	ErrWorkerStopped = errors.New("executor: worker stopped")

	// ErrWorkerStarted indicates Start was called more than once.
	ErrWorkerStarted = errors.New("executor: worker already started")

	// ErrNilExecutor indicates a nil executor.
	ErrNilExecutor = errors.New("executor: executor is nil")
)
