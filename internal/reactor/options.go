package reactor

// config holds resolved Reactor construction options.
type config struct {
	poller poller
}

// Option configures a Reactor, following the same functional-options
// shape used across this codebase's packages.
type Option interface {
	apply(*config) error
}

type optionFunc func(*config) error

func (f optionFunc) apply(c *config) error { return f(c) }

// withPoller overrides the platform-default poller. Unexported: only
// this package's tests construct a fake poller, since the poller
// interface itself is an implementation detail, not a public
// extension point.
func withPoller(p poller) Option {
	return optionFunc(func(c *config) error {
		c.poller = p
		return nil
	})
}

func resolveOptions(opts []Option) (*config, error) {
	c := &config{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o.apply(c); err != nil {
			return nil, err
		}
	}
	if c.poller == nil {
		p, err := newPlatformPoller()
		if err != nil {
			return nil, err
		}
		c.poller = p
	}
	return c, nil
}
