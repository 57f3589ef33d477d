package queue

import "errors"

var (
	// ErrDuplicateID is returned when a task ID has already been used in this queue.
	ErrDuplicateID = errors.New("duplicate task id")
	// ErrNotFound is returned when no live task has the given ID.
	ErrNotFound = errors.New("task not found")
	// ErrInvalidState is returned when an operation is not legal for the task's status.
	ErrInvalidState = errors.New("invalid task state")
	// ErrInvalidKind is returned when a task names an unknown agent kind.
	ErrInvalidKind = errors.New("invalid agent kind")
	// ErrInvalidOutcome is returned when a reported outcome is not terminal or a
	// failure carries no reason.
	ErrInvalidOutcome = errors.New("invalid outcome")
	// ErrEmpty is returned by DequeueNext when no pending task matches.
	// It is expected during normal operation; callers back off and poll again.
	ErrEmpty = errors.New("queue empty")
)
