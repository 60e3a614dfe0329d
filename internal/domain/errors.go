package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a network-related error that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "connect", "fetch")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// StaleSnapshotError reports a venue whose latest snapshot is older than
// the engine's staleness threshold. The venue is excluded from the tick
// but the exclusion is surfaced, never silent.
type StaleSnapshotError struct {
	Venue     string
	Age       time.Duration
	Threshold time.Duration
}

func (e *StaleSnapshotError) Error() string {
	return fmt.Sprintf("stale snapshot from %s: age %s exceeds %s", e.Venue, e.Age, e.Threshold)
}

// CacheFillError reports the sub-ranges of a bar request that could not be
// filled after retries. The bars that were available are still returned
// alongside it; the failure is never all-or-nothing.
type CacheFillError struct {
	Venue    string
	Pair     string
	Interval Interval
	Missing  []TimeRange
	Err      error
}

func (e *CacheFillError) Error() string {
	parts := make([]string, len(e.Missing))
	for i, r := range e.Missing {
		parts[i] = r.String()
	}
	return fmt.Sprintf("cache fill failed for %s %s %s: missing %s: %v",
		e.Venue, e.Pair, e.Interval, strings.Join(parts, ", "), e.Err)
}

func (e *CacheFillError) Unwrap() error {
	return e.Err
}

var (
	// ErrInvalidNotional is returned when an evaluation is requested with a
	// zero or negative target notional. Not retriable.
	ErrInvalidNotional = errors.New("target notional must be positive")

	// ErrInvalidRange is returned for a malformed time range (end not after
	// start). Not retriable.
	ErrInvalidRange = errors.New("invalid time range")

	// ErrInvalidInterval is returned for an unsupported bar interval.
	ErrInvalidInterval = errors.New("invalid interval")

	// ErrEmptyBookSide marks a venue whose snapshot has an empty bid or ask
	// side; the venue sits out the tick.
	ErrEmptyBookSide = errors.New("empty order book side")
)
