package pool

import "time"

const defaultIdleTimeout = 5 * time.Second

type config struct {
	idleTimeout time.Duration
}

// Option configures a Pool, following the same functional-options
// shape used across this codebase's packages.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// WithIdleTimeout overrides how long an idle worker waits for a new
// task before exiting. Defaults to 5 seconds (spec.md §4.3, P9).
func WithIdleTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) {
		if d > 0 {
			c.idleTimeout = d
		}
	})
}

func resolveOptions(opts []Option) *config {
	c := &config{idleTimeout: defaultIdleTimeout}
	for _, o := range opts {
		if o != nil {
			o.apply(c)
		}
	}
	return c
}
