package circuitbreaker

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	OpenStatusCode = http.StatusServiceUnavailable
	OpenMessage    = "service unavailable"
)

// ErrCircuitOpen matches every error returned for a call rejected without
// running the operation.
var ErrCircuitOpen = errors.New("circuit breaker open")

// OpenError is returned by Call while the circuit is open.
type OpenError struct {
	Name       string
	StatusCode int
	Message    string
	// RetryAfter is the time left until the next trial call becomes eligible.
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %d %s", ErrCircuitOpen, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %q: %d %s", ErrCircuitOpen, e.Name, e.StatusCode, e.Message)
}

func (e *OpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// OperationError wraps the error returned by a protected operation. Unless the
// operation returned an error built with Exclude, the failure has been recorded.
type OperationError struct {
	Name string
	Err  error
}

func (e *OperationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("protected call failed: %v", e.Err)
	}
	return fmt.Sprintf("protected call %q failed: %v", e.Name, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// Exclude marks err as an outcome that says nothing about the dependency's
// health. Call returns it wrapped in an *OperationError without recording a
// failure or a success; a half-open trial that ends this way frees its slot
// and the circuit stays as it was.
func Exclude(err error) error {
	if err == nil {
		return nil
	}
	return &excludedError{err: err}
}

type excludedError struct {
	err error
}

func (e *excludedError) Error() string {
	return e.err.Error()
}

func (e *excludedError) Unwrap() error {
	return e.err
}

// IsOpen reports whether err was produced by a rejected call.
func IsOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}
