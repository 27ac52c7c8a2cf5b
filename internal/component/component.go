package component

import "context"

// Component is the capability every managed instrument, controller and
// driver provides.
//
// The manager calls Init synchronously, then runs Main on a pool worker until
// it returns or its context is cancelled, and finally calls Shutdown
// synchronously. Init and Shutdown must return promptly; Main may block for
// the component's whole life and must return once ctx is done.
type Component interface {
	Init(ctx context.Context) error
	Main(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Describer is implemented by components that can report their own status.
// The API includes the description in single-component responses.
type Describer interface {
	Describe() map[string]any
}

// Logger defines the logging interface handed to components.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

// WithFields returns a Logger that prepends args to every entry written to l.
func WithFields(l Logger, args ...any) Logger {
	if l == nil {
		return NopLogger{}
	}
	if len(args) == 0 {
		return l
	}
	if f, ok := l.(fieldLogger); ok {
		merged := make([]any, 0, len(f.fields)+len(args))
		merged = append(merged, f.fields...)
		return fieldLogger{base: f.base, fields: append(merged, args...)}
	}
	return fieldLogger{base: l, fields: args}
}

type fieldLogger struct {
	base   Logger
	fields []any
}

func (f fieldLogger) with(args []any) []any {
	out := make([]any, 0, len(f.fields)+len(args))
	out = append(out, f.fields...)
	return append(out, args...)
}

func (f fieldLogger) Debug(msg string, args ...any) { f.base.Debug(msg, f.with(args)...) }
func (f fieldLogger) Info(msg string, args ...any)  { f.base.Info(msg, f.with(args)...) }
func (f fieldLogger) Warn(msg string, args ...any)  { f.base.Warn(msg, f.with(args)...) }
func (f fieldLogger) Error(msg string, args ...any) { f.base.Error(msg, f.with(args)...) }
