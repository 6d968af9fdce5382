package logger

import "nifty/internal/app/port"

// slogAdapter implements port.Logger on top of the package-level logging functions.
type slogAdapter struct {
	attrs []any
}

// NewComponentAdapter creates an adapter that tags every entry with the component name.
func NewComponentAdapter(component string) port.Logger {
	return &slogAdapter{attrs: []any{"component", component}}
}

func (a *slogAdapter) with(args []any) []any {
	if len(a.attrs) == 0 {
		return args
	}
	return append(append(make([]any, 0, len(a.attrs)+len(args)), a.attrs...), args...)
}

// Info logs an informational message.
func (a *slogAdapter) Info(msg string, args ...any) {
	Info(msg, a.with(args)...)
}

// Debug logs a debug message.
func (a *slogAdapter) Debug(msg string, args ...any) {
	Debug(msg, a.with(args)...)
}

// Warn logs a warning.
func (a *slogAdapter) Warn(msg string, args ...any) {
	Warn(msg, a.with(args)...)
}

// Error logs an error.
func (a *slogAdapter) Error(msg string, args ...any) {
	Error(msg, a.with(args)...)
}
