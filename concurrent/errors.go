package concurrent

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTimeout marks tasks that had not finished when the batch timeout expired.
	// It wraps context.DeadlineExceeded.
	ErrTimeout = fmt.Errorf("dispatch timeout: %w", context.DeadlineExceeded)

	// ErrTaskPanic marks tasks that panicked.
	ErrTaskPanic = errors.New("task panicked")
)

// TaskError identifies the task that failed and carries its cause.
type TaskError struct {
	Index int
	Err   error
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	return fmt.Sprintf("task %d: %v", e.Index, e.Err)
}

// Unwrap returns the task's original error.
func (e *TaskError) Unwrap() error {
	return e.Err
}

// FailedIndex returns the index of the failed task carried by err, or -1.
func FailedIndex(err error) int {
	var taskErr *TaskError
	if errors.As(err, &taskErr) {
		return taskErr.Index
	}
	return -1
}
