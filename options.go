package diffra

import (
	"github.com/hupe1980/diffra/resource"
)

type options struct {
	logger     *Logger
	metrics    MetricsCollector
	controller *resource.Controller
	queueBound int
}

// Option configures Session constructor behavior.
type Option func(*options)

// WithLogger configures the logger used across the pipeline.
//
// If nil is passed, the default text logger is used.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NewLogger(nil)
		}
		o.logger = l
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithResourceController charges pattern-buffer allocations and archive
// transfers against a shared resource budget.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// WithQueueBound bounds the processing queue. The default (0) keeps the
// queue unbounded, so producers are never back-pressured; a bound makes
// back-pressure explicit at the cost of blocking AppendArray under
// sustained overload.
func WithQueueBound(n int) Option {
	return func(o *options) {
		o.queueBound = n
	}
}
