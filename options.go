package coost

import "runtime"

// config holds the tunables recognized by [NewManager].
type config struct {
	schedulerCount    int
	stackNumPerSched  int
	stackSize         int
	mainThreadSched   bool
	schedulerLogLevel LogLevel
}

func defaultConfig() config {
	return config{
		schedulerCount:    runtime.NumCPU(),
		stackNumPerSched:  8,
		stackSize:         1 << 20, // 1 MiB
		mainThreadSched:   false,
		schedulerLogLevel: LevelWarn,
	}
}

// Option configures a [Manager] at construction time.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// WithSchedulerCount sets the number of scheduler threads. A non-positive n
// is ignored (the default, runtime.NumCPU(), stays); a larger n is clamped
// to runtime.NumCPU(), so the manager never creates more schedulers than
// there are cores.
func WithSchedulerCount(n int) Option {
	return optionFunc(func(c *config) {
		if n > 0 {
			c.schedulerCount = n
		}
	})
}

// WithStackSlots sets the number of fixed stack slots per scheduler. Must be
// a power of two; non-power-of-two values are rounded up.
func WithStackSlots(n int) Option {
	return optionFunc(func(c *config) {
		if n > 0 {
			c.stackNumPerSched = nextPowerOfTwo(n)
		}
	})
}

// WithStackSize sets the expected stack size per slot in bytes. The value
// is recorded in the configuration but nothing reads it: Go goroutine
// stacks grow on demand, so no stack memory is sized or pre-allocated.
func WithStackSize(bytes int) Option {
	return optionFunc(func(c *config) {
		if bytes > 0 {
			c.stackSize = bytes
		}
	})
}

// WithMainThreadScheduler makes scheduler 0 run on the calling goroutine
// when [Manager.MainLoop] is invoked, instead of its own dedicated
// goroutine.
func WithMainThreadScheduler(enabled bool) Option {
	return optionFunc(func(c *config) {
		c.mainThreadSched = enabled
	})
}

// WithSchedulerLogLevel sets the minimum level at which each scheduler's
// developer trace is emitted through the package logger (see [SetLogger]).
func WithSchedulerLogLevel(level LogLevel) Option {
	return optionFunc(func(c *config) {
		c.schedulerLogLevel = level
	})
}

func resolveOptions(opts []Option) config {
	c := defaultConfig()
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.apply(&c)
	}
	if c.schedulerCount > runtime.NumCPU() {
		c.schedulerCount = runtime.NumCPU()
	}
	if c.schedulerCount < 1 {
		c.schedulerCount = 1
	}
	return c
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
