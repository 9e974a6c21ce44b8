// Package zapbridge provides a zapcore.Core that hands zap entries to a
// dispatcher. A zap.Logger built on it takes its levels, filters and
// appenders from the logger hierarchy:
//
//	log := zap.New(zapbridge.NewCore(d, "app"), zap.AddCaller())
//	log.Named("db").Info("connected", zap.Int("pool", 4))
//
// Named zap loggers map onto child targets ("app::db" above).
package zapbridge

import (
	"math"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/philipp01105/hierlog/core"
	"github.com/philipp01105/hierlog/dispatch"
)

// StacktraceKey carries zap's stack trace when an entry has one.
const StacktraceKey = "stacktrace"

// Core implements zapcore.Core.
type Core struct {
	d      *dispatch.Dispatcher
	target string
	fields []core.Field
}

// NewCore returns a core that emits entries for target and its children.
func NewCore(d *dispatch.Dispatcher, target string) *Core {
	return &Core{d: d, target: target}
}

// Enabled lets every level through; the per-target gate runs in Check
// once the logger name is known.
func (c *Core) Enabled(l zapcore.Level) bool {
	return LevelOf(l) < core.OffLevel
}

// With returns a core carrying fields on every entry.
func (c *Core) With(fields []zapcore.Field) zapcore.Core {
	child := *c
	child.fields = make([]core.Field, len(c.fields), len(c.fields)+len(fields))
	copy(child.fields, c.fields)
	child.fields = appendFields(child.fields, fields)
	return &child
}

// Check adds c to ce when the entry's target accepts its level.
func (c *Core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.d.Enabled(LevelOf(ent.Level), c.targetOf(ent.LoggerName)) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// Write delivers one entry.
func (c *Core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	e := core.GetEvent()
	defer core.PutEvent(e)

	if !ent.Time.IsZero() {
		e.Time = ent.Time
	}
	e.Level = LevelOf(ent.Level)
	e.Target = c.targetOf(ent.LoggerName)
	e.Message = ent.Message
	e.Fields = append(e.Fields, c.fields...)
	e.Fields = appendFields(e.Fields, fields)
	if ent.Stack != "" {
		e.Fields = append(e.Fields, core.String(StacktraceKey, ent.Stack))
	}
	if ent.Caller.Defined {
		e.Caller = core.CallerInfo{
			File:      ent.Caller.File,
			ShortFile: filepath.Base(ent.Caller.File),
			Line:      ent.Caller.Line,
			Function:  ent.Caller.Function,
			Module:    core.ModuleOf(ent.Caller.Function),
			Defined:   true,
		}
	}

	c.d.Log(e)
	return nil
}

// Sync flushes the dispatcher's appenders.
func (c *Core) Sync() error {
	return c.d.Flush()
}

// targetOf joins the core's target with a zap logger name. zap separates
// name segments with "."; targets accept it as well as "::".
func (c *Core) targetOf(name string) string {
	switch {
	case name == "":
		return c.target
	case c.target == "":
		return name
	default:
		return c.target + "::" + name
	}
}

// LevelOf maps zap levels onto event levels. DPanic, Panic and Fatal are
// errors; zap still panics or exits after writing them.
func LevelOf(l zapcore.Level) core.Level {
	switch {
	case l < zapcore.DebugLevel:
		return core.TraceLevel
	case l == zapcore.DebugLevel:
		return core.DebugLevel
	case l == zapcore.InfoLevel:
		return core.InfoLevel
	case l == zapcore.WarnLevel:
		return core.WarnLevel
	default:
		return core.ErrorLevel
	}
}

func appendFields(dst []core.Field, fields []zapcore.Field) []core.Field {
	for _, f := range fields {
		dst = appendField(dst, f)
	}
	return dst
}

func appendField(dst []core.Field, f zapcore.Field) []core.Field {
	switch f.Type {
	case zapcore.SkipType:
		return dst
	case zapcore.StringType:
		return append(dst, core.String(f.Key, f.String))
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type:
		return append(dst, core.Int64(f.Key, f.Integer))
	case zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type, zapcore.UintptrType:
		return append(dst, core.Any(f.Key, uint64(f.Integer)))
	case zapcore.Float64Type:
		return append(dst, core.Float64(f.Key, math.Float64frombits(uint64(f.Integer))))
	case zapcore.Float32Type:
		return append(dst, core.Float64(f.Key, float64(math.Float32frombits(uint32(f.Integer)))))
	case zapcore.BoolType:
		return append(dst, core.Bool(f.Key, f.Integer == 1))
	case zapcore.DurationType:
		return append(dst, core.Duration(f.Key, time.Duration(f.Integer)))
	case zapcore.TimeType:
		t := time.Unix(0, f.Integer)
		if loc, ok := f.Interface.(*time.Location); ok {
			t = t.In(loc)
		}
		return append(dst, core.Time(f.Key, t))
	case zapcore.TimeFullType:
		if t, ok := f.Interface.(time.Time); ok {
			return append(dst, core.Time(f.Key, t))
		}
	case zapcore.ErrorType:
		if err, ok := f.Interface.(error); ok {
			return append(dst, core.Field{Key: f.Key, Type: core.ErrorType, Str: err.Error()})
		}
	}
	return appendEncoded(dst, f)
}

// appendEncoded covers the remaining field types (objects, arrays,
// stringers, namespaces) by letting zap encode them into a map.
func appendEncoded(dst []core.Field, f zapcore.Field) []core.Field {
	enc := zapcore.NewMapObjectEncoder()
	f.AddTo(enc)
	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := enc.Fields[k].(type) {
		case string:
			dst = append(dst, core.String(k, v))
		default:
			dst = append(dst, core.Any(k, v))
		}
	}
	return dst
}
