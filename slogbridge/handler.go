// Package slogbridge routes log/slog records into a dispatcher, so
// libraries that log through slog obey the same hierarchy, levels and
// appenders as the rest of the program.
//
//	slog.SetDefault(slog.New(slogbridge.NewHandler(d, "app")))
package slogbridge

import (
	"context"
	"log/slog"
	"path/filepath"
	"runtime"

	"github.com/philipp01105/hierlog/core"
	"github.com/philipp01105/hierlog/dispatch"
)

// TargetKey is the attribute key that overrides the target of a single
// record, e.g. slog.String(slogbridge.TargetKey, "app::db").
const TargetKey = "target"

// Handler implements slog.Handler on top of a dispatch.Dispatcher.
type Handler struct {
	d      *dispatch.Dispatcher
	target string
	attrs  []core.Field
	group  string
}

// NewHandler creates a handler that emits records for target.
func NewHandler(d *dispatch.Dispatcher, target string) *Handler {
	return &Handler{d: d, target: target}
}

// Enabled consults the target's effective level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return h.d.Enabled(LevelOf(level), h.target)
}

// Handle converts the record into an event and delivers it.
func (h *Handler) Handle(_ context.Context, record slog.Record) error {
	e := core.GetEvent()
	defer core.PutEvent(e)

	if !record.Time.IsZero() {
		e.Time = record.Time
	}
	e.Level = LevelOf(record.Level)
	e.Target = h.target
	e.Message = record.Message
	e.Fields = append(e.Fields, h.attrs...)
	record.Attrs(func(a slog.Attr) bool {
		if a.Key == TargetKey && h.group == "" {
			e.Target = a.Value.String()
			return true
		}
		e.Fields = appendAttr(e.Fields, h.group, a)
		return true
	})
	if record.PC != 0 {
		e.Caller = callerOf(record.PC)
	}

	h.d.Log(e)
	return nil
}

// WithAttrs returns a new Handler with additional attributes.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	child := *h
	child.attrs = make([]core.Field, len(h.attrs), len(h.attrs)+len(attrs))
	copy(child.attrs, h.attrs)
	for _, a := range attrs {
		if a.Key == TargetKey && h.group == "" {
			child.target = a.Value.String()
			continue
		}
		child.attrs = appendAttr(child.attrs, h.group, a)
	}
	return &child
}

// WithGroup returns a new Handler whose attribute keys are prefixed with
// name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	child := *h
	child.group = name
	if h.group != "" {
		child.group = h.group + "." + name
	}
	return &child
}

// LevelOf maps slog levels onto event levels. Anything below
// slog.LevelDebug is trace.
func LevelOf(level slog.Level) core.Level {
	switch {
	case level >= slog.LevelError:
		return core.ErrorLevel
	case level >= slog.LevelWarn:
		return core.WarnLevel
	case level >= slog.LevelInfo:
		return core.InfoLevel
	case level >= slog.LevelDebug:
		return core.DebugLevel
	default:
		return core.TraceLevel
	}
}

func callerOf(pc uintptr) core.CallerInfo {
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if frame.File == "" {
		return core.CallerInfo{}
	}
	return core.CallerInfo{
		File:      frame.File,
		ShortFile: filepath.Base(frame.File),
		Line:      frame.Line,
		Function:  frame.Function,
		Module:    core.ModuleOf(frame.Function),
		Defined:   true,
	}
}

// appendAttr flattens a into dst. Group members become "group.key".
func appendAttr(dst []core.Field, group string, a slog.Attr) []core.Field {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	key := a.Key
	if group != "" && key != "" {
		key = group + "." + key
	} else if key == "" {
		key = group
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return append(dst, core.String(key, a.Value.String()))
	case slog.KindInt64:
		return append(dst, core.Int64(key, a.Value.Int64()))
	case slog.KindUint64:
		return append(dst, core.Any(key, a.Value.Uint64()))
	case slog.KindFloat64:
		return append(dst, core.Float64(key, a.Value.Float64()))
	case slog.KindBool:
		return append(dst, core.Bool(key, a.Value.Bool()))
	case slog.KindTime:
		return append(dst, core.Time(key, a.Value.Time()))
	case slog.KindDuration:
		return append(dst, core.Duration(key, a.Value.Duration()))
	case slog.KindGroup:
		for _, member := range a.Value.Group() {
			dst = appendAttr(dst, key, member)
		}
		return dst
	default:
		if err, ok := a.Value.Any().(error); ok {
			return append(dst, core.Field{Key: key, Type: core.ErrorType, Str: err.Error()})
		}
		return append(dst, core.Any(key, a.Value.Any()))
	}
}
