// Package circuitbreaker implements the circuit breaker pattern for calls to
// unreliable dependencies.
//
// A circuit breaker protects its caller from cascading failures by counting
// consecutive failures and short-circuiting calls once a threshold is reached.
// It has three states:
//
//   - CLOSED: Normal operation, calls pass through
//   - OPEN: Threshold reached, calls rejected with ErrCircuitOpen
//   - HALF-OPEN: Retry period elapsed, a single trial call is let through
//
// The state is recomputed from the failure count and the time of the last
// failure before every call. There are no timers or background goroutines.
// A successful call resets the breaker; a failed trial re-arms the retry
// period from the time of that failure.
//
// Usage:
//
//	cb := circuitbreaker.New(3, time.Minute, circuitbreaker.WithName("inventory"))
//	body, err := circuitbreaker.Execute(cb, func() ([]byte, error) {
//	    return fetchInventory(ctx)
//	})
//	if circuitbreaker.IsOpen(err) {
//	    // Serve a fallback...
//	}
//
// The breaker never retries and imposes no timeout; both are the caller's
// concern.
package circuitbreaker
