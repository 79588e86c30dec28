package circuitbreaker_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/breakerguard/internal/circuitbreaker"
)

type quote struct {
	Symbol string
	Price  float64
}

var _ = Describe("Typed helpers", func() {
	var cb *circuitbreaker.CircuitBreaker

	BeforeEach(func() {
		cb = circuitbreaker.New(1, time.Minute, circuitbreaker.WithName("quotes"))
	})

	Describe("Execute", func() {
		It("should return the typed result", func() {
			q, err := circuitbreaker.Execute(cb, func() (quote, error) {
				return quote{Symbol: "ACME", Price: 12.5}, nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(q).To(Equal(quote{Symbol: "ACME", Price: 12.5}))
		})

		It("should return the zero value on failure", func() {
			q, err := circuitbreaker.Execute(cb, func() (*quote, error) {
				return &quote{}, errUpstream
			})
			Expect(err).To(MatchError(errUpstream))
			Expect(q).To(BeNil())

			var opErr *circuitbreaker.OperationError
			Expect(errors.As(err, &opErr)).To(BeTrue())
			Expect(opErr.Name).To(Equal("quotes"))
			Expect(err.Error()).To(ContainSubstring(`"quotes"`))
		})

		It("should handle nil results", func() {
			res, err := circuitbreaker.Execute(cb, func() (*quote, error) {
				return nil, nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res).To(BeNil())
		})
	})

	Describe("Protect", func() {
		It("should return a function that shares the breaker", func() {
			calls := 0
			fetch := circuitbreaker.Protect(cb, func() (int, error) {
				calls++
				return 0, errUpstream
			})

			_, err := fetch()
			Expect(err).To(MatchError(errUpstream))

			_, err = fetch()
			Expect(circuitbreaker.IsOpen(err)).To(BeTrue())
			Expect(calls).To(Equal(1))
		})
	})

	Describe("Do", func() {
		It("should run operations without a result", func() {
			ran := false
			err := cb.Do(func() error {
				ran = true
				return nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(ran).To(BeTrue())
		})

		It("should report open circuits with the breaker name", func() {
			_ = cb.Do(func() error { return errUpstream })

			err := cb.Do(func() error { return nil })
			Expect(err).To(MatchError(ContainSubstring(`circuit breaker open "quotes"`)))
		})
	})
})
