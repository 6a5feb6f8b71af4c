package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrAlreadyTerminal is returned when a task already reached a terminal status.
	ErrAlreadyTerminal = errors.New("task already terminal")
	// ErrAlreadyRunning is returned when a task run loop is started more than once.
	ErrAlreadyRunning = errors.New("task already running")
	// ErrRunnerState is returned when a runner operation is not allowed in the current runner state.
	ErrRunnerState = errors.New("invalid runner state")
	// ErrWorkerPanic is returned when a worker terminates abnormally for reasons unrelated to task logic.
	ErrWorkerPanic = errors.New("worker panicked")
)
