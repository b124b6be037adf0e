package ssp

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dreamware/lazyssp/internal/cacheidx"
)

// SizeDeterminer resolves a size left as 0 at New() time, via a per-size
// determiner callback. It is called at most once, at initialise time.
type SizeDeterminer func() (uint64, error)

// OutputCreator is invoked once at initialise with this peer's rank and
// returns a sink path for internal/debugdump's snapshot writer, or "" to
// disable on-disk persistence. A nil OutputCreator disables persistence
// entirely: debug dumping is optional ambient tooling, not a core operation.
type OutputCreator func(rank int) string

// config bundles every knob New accepts, in the standard
// config+Option+defaultConfig shape.
type config struct {
	blockSize   uint64
	cacheSize   uint64
	hash        cacheidx.Hash
	offsetSlack bool
	maxThreads  uint

	tableAmountFn SizeDeterminer
	tableSizeFn   SizeDeterminer
	rowSizeFn     SizeDeterminer

	outputCreator OutputCreator

	logger   *zap.Logger
	registry *prometheus.Registry
}

// Option is a functional option passed to New.
type Option func(*config)

func defaultConfig() *config {
	return &config{
		offsetSlack: true,
		maxThreads:  1,
		logger:      zap.NewNop(),
	}
}

// WithBlockSize sets the sharding block size. 0 (the default) means "whole
// tables per peer", resolved against table_size once it is known.
func WithBlockSize(blockSize uint64) Option {
	return func(c *config) { c.blockSize = blockSize }
}

// WithCacheSize sets the cache region's slot count.
func WithCacheSize(cacheSize uint64) Option {
	return func(c *config) { c.cacheSize = cacheSize }
}

// WithHash overrides the cache-index hash. Unset (the default) resolves to
// row-major hashing against table_size once known.
func WithHash(h cacheidx.Hash) Option {
	return func(c *config) { c.hash = h }
}

// WithOffsetSlack sets the offset-slack configuration bit used by
// internal/age.ComputeMinAge. Defaults to true.
func WithOffsetSlack(enabled bool) Option {
	return func(c *config) { c.offsetSlack = enabled }
}

// WithMaxThreads bounds the per-process concurrent caller count used for
// the lock word's overflow-safety check.
func WithMaxThreads(n uint) Option {
	return func(c *config) { c.maxThreads = n }
}

// WithTableAmount supplies a determiner for table_amount when it is left 0
// at New().
func WithTableAmount(fn SizeDeterminer) Option {
	return func(c *config) { c.tableAmountFn = fn }
}

// WithTableSize supplies a determiner for table_size when it is left 0 at
// New().
func WithTableSize(fn SizeDeterminer) Option {
	return func(c *config) { c.tableSizeFn = fn }
}

// WithRowSize supplies a determiner for row_size when it is left 0 at
// New().
func WithRowSize(fn SizeDeterminer) Option {
	return func(c *config) { c.rowSizeFn = fn }
}

// WithOutputCreator installs the debug-dump sink factory.
func WithOutputCreator(oc OutputCreator) Option {
	return func(c *config) { c.outputCreator = oc }
}

// WithLogger plugs an external zap.Logger. The cache never logs on the read
// retry loop, the lock acquire/release path or the fulfillment sweep; only
// slot allocation, barrier completion, teardown and transport errors are
// logged.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics collection. Passing nil (the
// default) disables metrics.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *config) { c.registry = reg }
}

func applyOptions(opts []Option) *config {
	c := defaultConfig()
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// resolveSize returns explicit if nonzero, else calls fn (if present),
// letting any size be left unspecified in favor of a determiner callback.
func resolveSize(explicit uint64, fn SizeDeterminer) (uint64, error) {
	if explicit != 0 {
		return explicit, nil
	}
	if fn == nil {
		return 0, newErr(KindInvalidArgument, "size is 0 and no determiner was supplied")
	}
	v, err := fn()
	if err != nil {
		return 0, wrapErr(KindInvalidArgument, "size determiner failed", err)
	}
	if v == 0 {
		return 0, newErr(KindInvalidArgument, "size determiner resolved to 0")
	}
	return v, nil
}
