package circuitbreaker

import "time"

// Snapshot is a point-in-time copy of a breaker's bookkeeping.
type Snapshot struct {
	Name             string
	Status           Status
	FailureCount     int
	LastFailure      time.Time
	FailureThreshold int
	RetryTimePeriod  time.Duration
}

// Snapshot reports the status as of now together with the counters it was
// derived from. The breaker itself is not modified.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return Snapshot{
		Name:             cb.name,
		Status:           cb.evaluate(cb.now()),
		FailureCount:     cb.failures,
		LastFailure:      cb.lastFailure,
		FailureThreshold: cb.failureThreshold,
		RetryTimePeriod:  cb.retryTimePeriod,
	}
}
