// Package introspect exposes read-only breaker state over HTTP for monitoring
// and debugging.
//
// The handler serves a JSON report with the status, failure count, last
// failure time and settings of every breaker in a registry:
//
//	{
//	  "generated_at": "2024-01-01T12:00:00Z",
//	  "breakers": {
//	    "inventory": {"status": "OPEN", "failure_count": 3, ...}
//	  }
//	}
//
// Reading the report never changes a breaker.
package introspect
