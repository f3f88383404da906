package profiling

import "context"

type profilerKeyType struct{}

var profilerKey = profilerKeyType{}

// WithProfiler attaches profiler to ctx.
func WithProfiler(ctx context.Context, profiler *Profiler) context.Context {
	return context.WithValue(ctx, profilerKey, profiler)
}

// FromContext retrieves the Profiler attached by WithProfiler, or nil.
func FromContext(ctx context.Context) *Profiler {
	profiler, _ := ctx.Value(profilerKey).(*Profiler)
	return profiler
}

// TraceOperation times fn under operationName if ctx carries a Profiler
// with operation metrics enabled; otherwise it just runs fn.
func TraceOperation(ctx context.Context, operationName string, fn func() error) error {
	profiler := FromContext(ctx)
	if profiler == nil || !profiler.Config.EnableOperationMetrics {
		return fn()
	}

	timer := profiler.OperationMetrics.StartOperation(operationName)
	defer timer.Stop()
	return fn()
}
