package introspect_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/breakerguard/internal/circuitbreaker"
	"github.com/angeloszaimis/breakerguard/internal/introspect"
)

var _ = Describe("Introspect", func() {
	var registry *circuitbreaker.Registry

	BeforeEach(func() {
		registry = circuitbreaker.NewRegistry(circuitbreaker.Settings{
			FailureThreshold: 2,
			RetryTimePeriod:  30 * time.Second,
		})
	})

	Describe("Build", func() {
		It("should report each breaker", func() {
			failedAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
			now := failedAt.Add(10 * time.Second)

			report := introspect.Build(map[string]circuitbreaker.Snapshot{
				"inventory": {Status: circuitbreaker.StatusClosed, FailureThreshold: 2, RetryTimePeriod: 30 * time.Second},
				"billing": {
					Status:           circuitbreaker.StatusOpen,
					FailureCount:     2,
					LastFailure:      failedAt,
					FailureThreshold: 2,
					RetryTimePeriod:  30 * time.Second,
				},
			}, now)

			Expect(report.GeneratedAt).To(Equal(now))
			Expect(report.Breakers).To(HaveLen(2))
			Expect(report.Breakers["inventory"].Status).To(Equal("CLOSED"))
			Expect(report.Breakers["inventory"].LastFailure).To(BeNil())
			Expect(report.Breakers["billing"].Status).To(Equal("OPEN"))
			Expect(report.Breakers["billing"].FailureCount).To(Equal(2))
			Expect(*report.Breakers["billing"].LastFailure).To(Equal(failedAt))
			Expect(report.Breakers["billing"].RetryTimePeriod).To(Equal("30s"))
		})
	})

	Describe("Handler", func() {
		It("should serve the registry state as JSON", func() {
			registry.Breaker("inventory")
			billing := registry.Breaker("billing")
			billing.RecordFailure()
			billing.RecordFailure()

			w := httptest.NewRecorder()
			introspect.Handler(registry)(w, httptest.NewRequest(http.MethodGet, "/breakers", nil))

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("Content-Type")).To(Equal("application/json"))

			var report introspect.Report
			Expect(json.Unmarshal(w.Body.Bytes(), &report)).To(Succeed())
			Expect(report.Breakers).To(HaveKey("inventory"))
			Expect(report.Breakers["billing"].Status).To(Equal("OPEN"))
			Expect(report.Breakers["billing"].FailureCount).To(Equal(2))
			Expect(report.Breakers["billing"].LastFailure).NotTo(BeNil())
		})

		It("should not change breaker state", func() {
			cb := registry.Breaker("inventory")
			cb.RecordFailure()
			cb.RecordFailure()

			introspect.Handler(registry)(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/breakers", nil))

			Expect(cb.Status()).To(Equal(circuitbreaker.StatusClosed))
			Expect(cb.FailureCount()).To(Equal(2))
		})

		It("should reject other methods", func() {
			w := httptest.NewRecorder()
			introspect.Handler(registry)(w, httptest.NewRequest(http.MethodPost, "/breakers", nil))

			Expect(w.Code).To(Equal(http.StatusMethodNotAllowed))
		})
	})
})
