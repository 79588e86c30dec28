package introspect

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/angeloszaimis/breakerguard/internal/circuitbreaker"
)

// StatsSource is implemented by *circuitbreaker.Registry.
type StatsSource interface {
	Stats() map[string]circuitbreaker.Snapshot
}

type Report struct {
	GeneratedAt time.Time                `json:"generated_at"`
	Breakers    map[string]BreakerReport `json:"breakers"`
}

type BreakerReport struct {
	Status           string     `json:"status"`
	FailureCount     int        `json:"failure_count"`
	LastFailure      *time.Time `json:"last_failure,omitempty"`
	FailureThreshold int        `json:"failure_threshold"`
	RetryTimePeriod  string     `json:"retry_time_period"`
}

// Build converts breaker snapshots into their JSON report form.
func Build(stats map[string]circuitbreaker.Snapshot, now time.Time) Report {
	report := Report{
		GeneratedAt: now.UTC(),
		Breakers:    make(map[string]BreakerReport, len(stats)),
	}

	for name, snap := range stats {
		br := BreakerReport{
			Status:           snap.Status.String(),
			FailureCount:     snap.FailureCount,
			FailureThreshold: snap.FailureThreshold,
			RetryTimePeriod:  snap.RetryTimePeriod.String(),
		}

		if !snap.LastFailure.IsZero() {
			last := snap.LastFailure.UTC()
			br.LastFailure = &last
		}

		report.Breakers[name] = br
	}

	return report
}

func Handler(source StatsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		report := Build(source.Stats(), time.Now())

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(report); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}
