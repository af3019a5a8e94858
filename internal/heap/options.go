package heap

const (
	defaultInitialSemispaceSize = 1 * 1024 * 1024 * wordSize // matches kInitialSemispaceSize
	defaultMaxSemispaceSize     = 16 * defaultInitialSemispaceSize
)

// config holds resolved Heap construction options.
type config struct {
	initialSize int
	maxSize     int
	weakClasses bool
	debugZap    bool
}

// Option configures a Heap. The pattern mirrors the functional-options
// style used throughout this codebase's configuration surfaces (the
// heap, reactor and pool packages each expose one).
type Option interface {
	apply(*config) error
}

type optionFunc func(*config) error

func (f optionFunc) apply(c *config) error { return f(c) }

// WithInitialSemispaceSize sets the starting size, in bytes, of each of
// the heap's two semispaces. Must be a positive multiple of
// objectAlignment; rounded up otherwise.
func WithInitialSemispaceSize(n int) Option {
	return optionFunc(func(c *config) error {
		if n <= 0 {
			return fatalf("WithInitialSemispaceSize", "size must be positive, got %d", n)
		}
		c.initialSize = roundUpToAlignment(n)
		return nil
	})
}

// WithMaxSemispaceSize sets the ceiling a semispace may grow to before
// a scavenge that still can't satisfy an allocation becomes fatal
// (spec.md §4.1.5's growth policy).
func WithMaxSemispaceSize(n int) Option {
	return optionFunc(func(c *config) error {
		if n <= 0 {
			return fatalf("WithMaxSemispaceSize", "size must be positive, got %d", n)
		}
		c.maxSize = roundUpToAlignment(n)
		return nil
	})
}

// WithWeakClassTable selects weak class-table mode: classes become
// collectible once unreferenced from live objects, and their ids are
// recycled via a free list. The default is strong mode, where every
// allocated class is a permanent GC root. This is a build-time choice
// per spec.md §5's Open Question decision (see DESIGN.md).
func WithWeakClassTable(enabled bool) Option {
	return optionFunc(func(c *config) error {
		c.weakClasses = enabled
		return nil
	})
}

// WithDebugZapping enables zap/uninitialized-byte poisoning of
// semispace memory. Off by default (it costs a full-space fill on
// every reset); tests that hunt stale-reference bugs turn it on.
func WithDebugZapping(enabled bool) Option {
	return optionFunc(func(c *config) error {
		c.debugZap = enabled
		return nil
	})
}

func resolveOptions(opts []Option) (*config, error) {
	c := &config{
		initialSize: defaultInitialSemispaceSize,
		maxSize:     defaultMaxSemispaceSize,
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o.apply(c); err != nil {
			return nil, err
		}
	}
	if c.maxSize < c.initialSize {
		c.maxSize = c.initialSize
	}
	return c, nil
}
