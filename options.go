package usearch

import (
	"log/slog"

	"github.com/dluc/usearch/distance"
)

type options struct {
	logger   *Logger
	metrics  MetricsCollector
	compiled *distance.CompiledMetric
	seed     *int64
	memLimit int64
	ioLimit  int64
}

// Option configures New, OpenView and the load functions.
type Option func(*options)

// WithLogger configures structured logging. Pass nil to disable logging.
//
//	logger := usearch.NewJSONLogger(slog.LevelInfo)
//	idx, _ := usearch.New(cfg, usearch.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel is shorthand for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures operation metrics. Pass nil to disable them.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithCompiledMetric replaces the built-in metric with an external function.
// The configured metric becomes distance.External.
func WithCompiledMetric(m distance.CompiledMetric) Option {
	return func(o *options) {
		o.compiled = &m
	}
}

// WithRandomSeed makes level assignment deterministic. It overrides Config.Seed.
func WithRandomSeed(seed int64) Option {
	return func(o *options) {
		o.seed = &seed
	}
}

// WithMemoryLimit caps vector storage; growth beyond it fails with
// ErrCapacityExceeded. It overrides Config.MemoryLimit.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memLimit = bytes
	}
}

// WithIOLimit throttles SaveTo and LoadFrom to bytesPerSec.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:  NoopLogger(),
		metrics: NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
