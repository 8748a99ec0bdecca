package gc60

import (
	"runtime"

	"go.uber.org/zap"

	"github.com/jcalabro/gc60/resource"
)

type options struct {
	segmentBlocks uint64
	workers       int
	memoryLimit   int64
	budget        *resource.Budget
	logger        *zap.Logger
}

func defaultOptions() options {
	return options{
		segmentBlocks: DefaultSegmentBlocks,
		workers:       runtime.GOMAXPROCS(0),
		logger:        zap.NewNop(),
	}
}

// Option configures an Engine.
type Option func(*options)

// WithSegmentBlocks sets the number of blocks swept per segment.
// Values below one cache line of blocks are rounded up to it.
func WithSegmentBlocks(n uint64) Option {
	return func(o *options) {
		o.segmentBlocks = max(n, segmentAlign)
	}
}

// WithWorkers sets the number of goroutines used by SieveParallel.
// If n <= 0, GOMAXPROCS is used.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n <= 0 {
			n = runtime.GOMAXPROCS(0)
		}
		o.workers = n
	}
}

// WithMemoryLimit caps the bytes the candidate bitset may use.
//
// 0 (the default) budgets against the memory currently available on the host.
// A negative value disables the check.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithMemoryBudget draws the bitset reservation from a budget shared with
// other engines. It takes precedence over WithMemoryLimit.
func WithMemoryBudget(b *resource.Budget) Option {
	return func(o *options) {
		o.budget = b
	}
}

// WithLogger sets the logger. If nil is passed, logging is disabled.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l == nil {
			l = zap.NewNop()
		}
		o.logger = l
	}
}
