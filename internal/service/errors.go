package service

import "fmt"

// ValidationError covers malformed arguments and bad deadlines. The
// message is user-facing as-is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError means the referenced task does not exist for the
// caller. For complete it also covers "already completed"; the two are
// deliberately not distinguished.
type NotFoundError struct {
	TaskID uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %d not found", e.TaskID)
}

// StoreError wraps a repository failure. The caller shows a generic
// database-error reply and logs the detail.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
