package circuitbreaker

// Execute runs operation through cb and returns its typed result.
func Execute[T any](cb *CircuitBreaker, operation func() (T, error)) (T, error) {
	var zero T

	result, err := cb.Call(func() (any, error) {
		return operation()
	})
	if err != nil {
		return zero, err
	}

	typed, ok := result.(T)
	if !ok {
		return zero, nil
	}

	return typed, nil
}

// Protect returns an equivalent of operation that always runs through cb.
func Protect[T any](cb *CircuitBreaker, operation func() (T, error)) func() (T, error) {
	return func() (T, error) {
		return Execute(cb, operation)
	}
}

// Do runs an operation that produces no result.
func (cb *CircuitBreaker) Do(operation func() error) error {
	_, err := cb.Call(func() (any, error) {
		return nil, operation()
	})
	return err
}
