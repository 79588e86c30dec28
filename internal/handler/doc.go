// Package handler implements the HTTP entry point of the guard service.
//
// Requests to /{upstream}/{path...} are forwarded to the named upstream
// through its circuit breaker. Outcomes map onto responses as follows:
//
//   - success or 4xx from the upstream: forwarded as is
//   - 5xx from the upstream: forwarded as is, counted as a failure
//   - transport failure: 502 Bad Gateway
//   - open circuit: 503 Service Unavailable with Retry-After
//   - unknown upstream: 404 Not Found
package handler
