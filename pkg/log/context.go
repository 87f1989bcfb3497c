package log

import "context"

type contextKey struct{}

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or the global logger.
func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if l, ok := ctx.Value(contextKey{}).(Logger); ok && l != nil {
			return l
		}
	}
	return std
}

// IntoContext attaches key/value pairs to the logger carried by ctx.
func IntoContext(ctx context.Context, keysAndValues ...any) context.Context {
	return NewContext(ctx, FromContext(ctx).WithValues(keysAndValues...))
}
