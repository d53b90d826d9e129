package scheduler

import "errors"

var (
	// ErrPoolNotRunning is returned when submitting to a pool that is not started
	ErrPoolNotRunning = errors.New("keyed pool is not running")

	// ErrJobQueueFull is returned when the worker queue for a key is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrJobPanicked is returned when a job panics
	ErrJobPanicked = errors.New("job panicked")
)
