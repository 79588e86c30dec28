// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the service configuration structure
// including server settings, logging, shared circuit breaker settings and the
// upstream dependencies guarded by a breaker each.
package config
