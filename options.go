package quadtree

type options struct {
	logger  *Logger
	metrics MetricsCollector
}

// Option configures a Quadtree at construction.
type Option func(*options)

// WithLogger sets the logger used for per-operation debug output.
// If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector configures a collector for operation metrics.
// Pass nil to disable metrics collection.
//
// Example:
//
//	metrics := &quadtree.BasicMetricsCollector{}
//	qt := quadtree.New[*Unit](8, 0.01, tl, br, quadtree.WithMetricsCollector(metrics))
//	// ...
//	fmt.Println(metrics.Snapshot().Splits)
func WithMetricsCollector(c MetricsCollector) Option {
	return func(o *options) {
		if c == nil {
			c = NoopMetricsCollector{}
		}
		o.metrics = c
	}
}

func defaultOptions() options {
	return options{
		logger:  NoopLogger(),
		metrics: NoopMetricsCollector{},
	}
}
