package core

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNotFound covers both missing and not-owned resources; callers cannot
	// tell the two apart.
	ErrNotFound = errors.New("not found")
	ErrStorage  = errors.New("storage unavailable")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

type StorageError struct {
	Op  string
	Err error
}

func NewStorageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// RecordError reports a probe that completed but whose result could not be
// persisted. Result holds the classified, unrecorded outcome.
type RecordError struct {
	Result *CheckResult
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("check completed with status %s but was not recorded: %v", e.Result.Status, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
