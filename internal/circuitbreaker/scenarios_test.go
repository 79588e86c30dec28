package circuitbreaker_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/breakerguard/internal/circuitbreaker"
)

var _ = Describe("Breaker lifecycle", func() {
	It("should open on the call after a single failure with threshold 1", func() {
		cb := circuitbreaker.New(1, 120*time.Second)

		_, err := cb.Call(failing)
		Expect(err).To(MatchError(errUpstream))
		Expect(cb.FailureCount()).To(Equal(1))
		Expect(cb.Status()).To(Equal(circuitbreaker.StatusClosed))

		invoked := false
		_, err = cb.Call(func() (any, error) {
			invoked = true
			return nil, errUpstream
		})
		Expect(err).To(MatchError(circuitbreaker.ErrCircuitOpen))
		Expect(invoked).To(BeFalse())
		Expect(cb.Status()).To(Equal(circuitbreaker.StatusOpen))
		Expect(cb.FailureCount()).To(Equal(1))
	})

	It("should close again after the retry period when the trial succeeds", func() {
		cb := circuitbreaker.New(3, 100*time.Millisecond)

		for i := 0; i < 3; i++ {
			_, _ = cb.Call(failing)
		}
		Expect(cb.FailureCount()).To(Equal(3))
		Expect(cb.CurrentStatus()).To(Equal(circuitbreaker.StatusOpen))

		time.Sleep(150 * time.Millisecond)

		invoked := 0
		result, err := cb.Call(func() (any, error) {
			invoked++
			return "recovered", nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal("recovered"))
		Expect(invoked).To(Equal(1))
		Expect(cb.FailureCount()).To(Equal(0))
		Expect(cb.Status()).To(Equal(circuitbreaker.StatusClosed))
	})

	It("should never leave CLOSED when a success arrives before the threshold", func() {
		cb := circuitbreaker.New(2, 5*time.Second)

		_, _ = cb.Call(failing)
		_, err := cb.Call(succeeding)
		Expect(err).NotTo(HaveOccurred())

		Expect(cb.FailureCount()).To(Equal(0))
		Expect(cb.Status()).To(Equal(circuitbreaker.StatusClosed))
		Expect(cb.CurrentStatus()).To(Equal(circuitbreaker.StatusClosed))
	})
})
