package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

type Status int

const (
	StatusClosed   Status = iota // Calls pass through
	StatusOpen                   // Calls rejected
	StatusHalfOpen               // One trial call allowed
)

const (
	DefaultFailureThreshold = 3
	DefaultRetryTimePeriod  = 60 * time.Second
)

// StateChangeHook is called after the stored status of a breaker changes.
// Calls are delivered one at a time in the order the changes happened. A hook
// may read the breaker but must not call Call, Do or Reset on it.
type StateChangeHook func(name string, from, to Status)

type Option func(*CircuitBreaker)

// WithName labels the breaker in errors, snapshots and hook calls.
func WithName(name string) Option {
	return func(cb *CircuitBreaker) {
		cb.name = name
	}
}

// WithClock replaces time.Now as the breaker's source of the current time.
func WithClock(now func() time.Time) Option {
	return func(cb *CircuitBreaker) {
		if now != nil {
			cb.now = now
		}
	}
}

func WithStateChangeHook(hook StateChangeHook) Option {
	return func(cb *CircuitBreaker) {
		cb.onStateChange = hook
	}
}

// CircuitBreaker guards a single dependency. Its status is recomputed from the
// failure count and the time of the last failure before every call.
type CircuitBreaker struct {
	mutex            sync.Mutex
	hookMutex        sync.Mutex
	name             string
	status           Status
	failures         int
	lastFailure      time.Time
	probing          bool
	failureThreshold int
	retryTimePeriod  time.Duration
	now              func() time.Time
	onStateChange    StateChangeHook
}

// New creates a closed breaker. A threshold below 1 falls back to
// DefaultFailureThreshold and a negative retry period is treated as zero.
func New(failureThreshold int, retryTimePeriod time.Duration, opts ...Option) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = DefaultFailureThreshold
	}
	if retryTimePeriod < 0 {
		retryTimePeriod = 0
	}

	cb := &CircuitBreaker{
		status:           StatusClosed,
		failureThreshold: failureThreshold,
		retryTimePeriod:  retryTimePeriod,
		now:              time.Now,
	}

	for _, opt := range opts {
		opt(cb)
	}

	return cb
}

// Call runs operation under circuit breaker semantics. While the circuit is
// open, or while a half-open trial is already in flight, operation is not
// invoked and an *OpenError is returned. Otherwise operation runs exactly once:
// success resets the breaker, failure is recorded and returned wrapped in an
// *OperationError.
func (cb *CircuitBreaker) Call(operation func() (any, error)) (any, error) {
	trial, err := cb.admit()
	if err != nil {
		return nil, err
	}

	completed := false
	defer func() {
		if !completed {
			// operation panicked
			cb.recordFailure(trial)
		}
	}()

	result, opErr := operation()
	completed = true

	if opErr != nil {
		var excluded *excludedError
		if errors.As(opErr, &excluded) {
			cb.release(trial)
			return nil, &OperationError{Name: cb.name, Err: excluded.err}
		}

		cb.recordFailure(trial)
		return nil, &OperationError{Name: cb.name, Err: opErr}
	}

	cb.reset(trial)
	return result, nil
}

// admit recomputes the status and decides whether the call may proceed.
func (cb *CircuitBreaker) admit() (trial bool, err error) {
	cb.mutex.Lock()

	now := cb.now()
	from := cb.status
	cb.status = cb.evaluate(now)
	to := cb.status

	switch to {
	case StatusOpen:
		err = cb.openError(now)
	case StatusHalfOpen:
		if cb.probing {
			err = cb.openError(now)
		} else {
			cb.probing = true
			trial = true
		}
	}

	cb.unlockAndNotify(from, to)
	return trial, err
}

// evaluate must be called with cb.mutex held.
func (cb *CircuitBreaker) evaluate(now time.Time) Status {
	if cb.failures < cb.failureThreshold {
		return StatusClosed
	}

	if now.Sub(cb.lastFailure) > cb.retryTimePeriod {
		return StatusHalfOpen
	}

	return StatusOpen
}

// openError must be called with cb.mutex held.
func (cb *CircuitBreaker) openError(now time.Time) *OpenError {
	retryAfter := cb.retryTimePeriod - now.Sub(cb.lastFailure)
	if retryAfter < 0 {
		retryAfter = 0
	}

	return &OpenError{
		Name:       cb.name,
		StatusCode: OpenStatusCode,
		Message:    OpenMessage,
		RetryAfter: retryAfter,
	}
}

// RecordFailure counts one failure at the current time.
func (cb *CircuitBreaker) RecordFailure() {
	cb.recordFailure(false)
}

func (cb *CircuitBreaker) recordFailure(trial bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failures++
	cb.lastFailure = cb.now()
	if trial {
		cb.probing = false
	}
}

// Reset returns the breaker to its initial closed state.
func (cb *CircuitBreaker) Reset() {
	cb.reset(false)
}

func (cb *CircuitBreaker) reset(trial bool) {
	cb.mutex.Lock()

	from := cb.status
	cb.failures = 0
	cb.lastFailure = time.Time{}
	cb.status = StatusClosed
	if trial {
		cb.probing = false
	}

	cb.unlockAndNotify(from, StatusClosed)
}

// release ends a call that counts as neither success nor failure.
func (cb *CircuitBreaker) release(trial bool) {
	if !trial {
		return
	}

	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.probing = false
}

// unlockAndNotify must be called with cb.mutex held. The hook lock is taken
// before cb.mutex is released so hooks run in transition order.
func (cb *CircuitBreaker) unlockAndNotify(from, to Status) {
	if from == to || cb.onStateChange == nil {
		cb.mutex.Unlock()
		return
	}

	cb.hookMutex.Lock()
	cb.mutex.Unlock()
	defer cb.hookMutex.Unlock()

	cb.onStateChange(cb.name, from, to)
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Status returns the status observed by the most recent call or reset.
func (cb *CircuitBreaker) Status() Status {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.status
}

// CurrentStatus evaluates the status as of now without changing the breaker.
func (cb *CircuitBreaker) CurrentStatus() Status {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.evaluate(cb.now())
}

func (cb *CircuitBreaker) FailureCount() int {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.failures
}

// LastFailure returns the time of the most recent recorded failure. The
// boolean is false when no failure has been recorded since the last reset.
func (cb *CircuitBreaker) LastFailure() (time.Time, bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.lastFailure, !cb.lastFailure.IsZero()
}

func (cb *CircuitBreaker) FailureThreshold() int {
	return cb.failureThreshold
}

func (cb *CircuitBreaker) RetryTimePeriod() time.Duration {
	return cb.retryTimePeriod
}

func (s Status) String() string {
	switch s {
	case StatusClosed:
		return "CLOSED"
	case StatusOpen:
		return "OPEN"
	case StatusHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}
