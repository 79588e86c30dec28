// Package upstream provides HTTP clients for the dependencies guarded by the
// service. Each Upstream owns one circuit breaker and sends every request
// through it, so a failing dependency is short-circuited instead of slowing
// down every caller.
package upstream
