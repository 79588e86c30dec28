package circuitbreaker

import (
	"sort"
	"sync"
	"time"
)

// Settings configures the breaker created for one dependency.
type Settings struct {
	FailureThreshold int
	RetryTimePeriod  time.Duration
}

// Registry holds one breaker per named dependency. It is owned by the
// component that talks to those dependencies; there is no package-level
// instance.
type Registry struct {
	mutex    sync.RWMutex
	breakers map[string]*CircuitBreaker
	settings map[string]Settings
	defaults Settings
	opts     []Option
}

// NewRegistry creates an empty registry. opts are applied to every breaker it
// creates, after the breaker's name.
func NewRegistry(defaults Settings, opts ...Option) *Registry {
	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		settings: make(map[string]Settings),
		defaults: defaults,
		opts:     opts,
	}
}

// Configure sets the settings used when the breaker for name is created.
// Breakers that already exist keep their settings.
func (r *Registry) Configure(name string, settings Settings) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.settings[name] = settings
}

// Breaker returns the breaker for name, creating it on first use.
func (r *Registry) Breaker(name string) *CircuitBreaker {
	r.mutex.RLock()
	cb, exists := r.breakers[name]
	r.mutex.RUnlock()

	if exists {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if cb, exists = r.breakers[name]; exists {
		return cb
	}

	settings, ok := r.settings[name]
	if !ok {
		settings = r.defaults
	}

	opts := append([]Option{WithName(name)}, r.opts...)
	cb = New(settings.FailureThreshold, settings.RetryTimePeriod, opts...)
	r.breakers[name] = cb
	return cb
}

// Names returns the names of all created breakers in sorted order.
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset closes every breaker in place. Holders of a breaker keep the same
// instance.
func (r *Registry) Reset() {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, cb := range r.breakers {
		cb.Reset()
	}
}

func (r *Registry) Stats() map[string]Snapshot {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := make(map[string]Snapshot, len(r.breakers))
	for name, cb := range r.breakers {
		stats[name] = cb.Snapshot()
	}
	return stats
}
