package logger

import (
	"fmt"

	"github.com/philipp01105/hierlog/core"
	"github.com/philipp01105/hierlog/dispatch"
)

// TargetSeparator joins a parent target and a child name in Named.
const TargetSeparator = "::"

// Logger emits events for one target (immutable)
type Logger struct {
	// d is nil for loggers that follow the process default dispatcher
	d      *dispatch.Dispatcher
	target string
	fields []core.Field
}

// Builder provides a fluent API for building Logger instances
type Builder struct {
	d      *dispatch.Dispatcher
	target string
	fields []core.Field
}

// NewBuilder creates a new logger builder
func NewBuilder() *Builder {
	return &Builder{}
}

// WithDispatcher routes the logger through d instead of the process
// default.
func (b *Builder) WithDispatcher(d *dispatch.Dispatcher) *Builder {
	b.d = d
	return b
}

// WithTarget sets the target, e.g. "app::db". The empty target is the root.
func (b *Builder) WithTarget(target string) *Builder {
	b.target = target
	return b
}

// WithFields adds default fields to all events
func (b *Builder) WithFields(fields ...core.Field) *Builder {
	b.fields = append(b.fields, fields...)
	return b
}

// Build creates the Logger instance
func (b *Builder) Build() *Logger {
	return &Logger{
		d:      b.d,
		target: b.target,
		fields: append([]core.Field(nil), b.fields...),
	}
}

// New returns a logger for target on d.
func New(d *dispatch.Dispatcher, target string) *Logger {
	return &Logger{d: d, target: target}
}

// Target returns the logger's target.
func (l *Logger) Target() string { return l.target }

// With creates a new Logger with additional fields (immutable operation)
func (l *Logger) With(fields ...core.Field) *Logger {
	newFields := make([]core.Field, len(l.fields)+len(fields))
	copy(newFields, l.fields)
	copy(newFields[len(l.fields):], fields)

	return &Logger{d: l.d, target: l.target, fields: newFields}
}

// Named returns a logger for the child target name below l.
func (l *Logger) Named(name string) *Logger {
	target := name
	if l.target != "" {
		target = l.target + TargetSeparator + name
	}
	return &Logger{d: l.d, target: target, fields: l.fields}
}

func (l *Logger) dispatcher() *dispatch.Dispatcher {
	if l.d != nil {
		return l.d
	}
	return Dispatcher()
}

// Enabled reports whether an event at level would pass the target's level
// gate. Use it to guard expensive field construction.
func (l *Logger) Enabled(level core.Level) bool {
	return l.dispatcher().Enabled(level, l.target)
}

// Log logs a message at the specified level
func (l *Logger) Log(level core.Level, msg string, fields ...core.Field) {
	l.log(1, level, msg, fields)
}

// log adds one frame of its own to skip.
func (l *Logger) log(skip int, level core.Level, msg string, fields []core.Field) {
	d := l.dispatcher()
	if d == nil {
		return
	}
	d.EmitDepth(skip+1, level, l.target, msg, l.merge(fields)...)
}

func (l *Logger) logf(skip int, level core.Level, format string, args []interface{}) {
	d := l.dispatcher()
	if d == nil {
		return
	}
	d.EmitFuncDepth(skip+1, level, l.target, func() string {
		return fmt.Sprintf(format, args...)
	}, l.fields...)
}

// merge only allocates when both the logger and the call site carry fields.
func (l *Logger) merge(fields []core.Field) []core.Field {
	switch {
	case len(l.fields) == 0:
		return fields
	case len(fields) == 0:
		return l.fields
	}
	all := make([]core.Field, 0, len(l.fields)+len(fields))
	all = append(all, l.fields...)
	return append(all, fields...)
}

// Trace logs a trace message
func (l *Logger) Trace(msg string, fields ...core.Field) {
	l.log(1, core.TraceLevel, msg, fields)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...core.Field) {
	l.log(1, core.DebugLevel, msg, fields)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...core.Field) {
	l.log(1, core.InfoLevel, msg, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...core.Field) {
	l.log(1, core.WarnLevel, msg, fields)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...core.Field) {
	l.log(1, core.ErrorLevel, msg, fields)
}

// Tracef logs a trace message with formatting. The message is only
// formatted when the event passes the level gate.
func (l *Logger) Tracef(format string, args ...interface{}) {
	l.logf(1, core.TraceLevel, format, args)
}

// Debugf logs a debug message with formatting
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logf(1, core.DebugLevel, format, args)
}

// Infof logs an info message with formatting
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logf(1, core.InfoLevel, format, args)
}

// Warnf logs a warning message with formatting
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logf(1, core.WarnLevel, format, args)
}

// Errorf logs an error message with formatting
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logf(1, core.ErrorLevel, format, args)
}
