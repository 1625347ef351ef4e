package market

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrEmptySeries        = errors.New("empty series")
	ErrNonMonotonic       = errors.New("timestamps not strictly ascending")
	ErrDuplicateTimestamp = errors.New("duplicate timestamp")
	ErrInvalidBar         = errors.New("invalid bar")
	ErrEmptyRange         = errors.New("empty date range")
	ErrMissingBar         = errors.New("missing bar")
)

// ValidationError locates the bar that failed validation.
type ValidationError struct {
	Index int
	Time  time.Time
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("bar %d (%s): %v", e.Index, e.Time.Format(time.RFC3339), e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
