package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInstance    = errors.New("invalid instance")
	ErrMalformedRecord    = errors.New("malformed run record")
	ErrMissingField       = errors.New("missing field")
	ErrBackendUnavailable = errors.New("exact solver backend unavailable")
	ErrEmptyInput         = errors.New("empty input")
	ErrInvalidConfig      = errors.New("invalid solver configuration")
)

// InstanceError reports what made an instance unusable. Index is the offending
// item position, or -1 when the problem is instance-wide.
type InstanceError struct {
	InstanceID string
	Index      int
	Reason     string
}

func (e *InstanceError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("instance %q: item[%d]: %s", e.InstanceID, e.Index, e.Reason)
	}
	return fmt.Sprintf("instance %q: %s", e.InstanceID, e.Reason)
}

func (e *InstanceError) Unwrap() error {
	return ErrInvalidInstance
}

// RecordError wraps a record-level failure with the locator it came from.
type RecordError struct {
	Locator string
	Err     error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %s: %v", e.Locator, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
