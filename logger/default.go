package logger

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/philipp01105/hierlog/config"
	"github.com/philipp01105/hierlog/core"
	"github.com/philipp01105/hierlog/dispatch"
)

var (
	defaultDispatcher atomic.Pointer[dispatch.Dispatcher]

	// watchMu guards stopWatch, the cancel func of the InitFile watcher
	watchMu   sync.Mutex
	stopWatch context.CancelFunc

	// targets caches package targets by call site
	targets sync.Map
)

func init() {
	resetDefault()
}

// resetDefault installs a dispatcher whose root is off, so nothing is
// logged until Init or InitFile runs.
func resetDefault() {
	d, _ := dispatch.New(nil)
	defaultDispatcher.Store(d)
}

// Dispatcher returns the process default dispatcher
func Dispatcher() *dispatch.Dispatcher {
	return defaultDispatcher.Load()
}

// SetDispatcher replaces the process default dispatcher. The previous one
// is returned and left running.
func SetDispatcher(d *dispatch.Dispatcher) *dispatch.Dispatcher {
	if d == nil {
		d, _ = dispatch.New(nil)
	}
	return defaultDispatcher.Swap(d)
}

// Init builds cfg and makes it the active configuration of the default
// dispatcher. On error the previous configuration stays active.
func Init(cfg *config.Config) error {
	snap, err := config.Build(cfg)
	if err != nil {
		return err
	}
	if err := Dispatcher().Reload(snap); err != nil {
		_ = snap.Close()
		return err
	}
	return nil
}

// InitFile loads the configuration at path and activates it. When the file
// sets refresh_rate, it is watched for changes until Shutdown or the next
// InitFile.
func InitFile(path string) error {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if err := Init(cfg); err != nil {
		return err
	}

	watchMu.Lock()
	defer watchMu.Unlock()
	if stopWatch != nil {
		stopWatch()
		stopWatch = nil
	}
	if cfg.RefreshRate != "" {
		ctx, cancel := context.WithCancel(context.Background())
		stopWatch = cancel
		d := Dispatcher()
		go func() { _ = config.Watch(ctx, path, d) }()
	}
	return nil
}

// Flush flushes every appender of the default dispatcher.
func Flush() error {
	return Dispatcher().Flush()
}

// Shutdown stops any config watcher, closes the appenders of the default
// dispatcher and installs an empty one in its place.
func Shutdown(ctx context.Context) error {
	watchMu.Lock()
	if stopWatch != nil {
		stopWatch()
		stopWatch = nil
	}
	watchMu.Unlock()

	prev := Dispatcher()
	resetDefault()
	return prev.Shutdown(ctx)
}

// Get returns a logger for target that follows the default dispatcher,
// including dispatchers installed after the call.
func Get(target string) *Logger {
	return &Logger{target: target}
}

// TargetOf converts a package path into a target:
// "github.com/acme/shop/db" becomes "github.com::acme::shop::db".
func TargetOf(pkg string) string {
	return strings.ReplaceAll(pkg, "/", TargetSeparator)
}

// callerTarget returns the target of the package skip frames above the
// function calling callerTarget.
func callerTarget(skip int) string {
	var pcs [1]uintptr
	if runtime.Callers(skip+2, pcs[:]) == 0 {
		return ""
	}
	if t, ok := targets.Load(pcs[0]); ok {
		return t.(string)
	}
	frame, _ := runtime.CallersFrames(pcs[:]).Next()
	t := TargetOf(core.ModuleOf(frame.Function))
	targets.Store(pcs[0], t)
	return t
}

// Package-level functions log through the default dispatcher with the
// calling package as target.

func emit(level core.Level, msg string, fields []core.Field) {
	Dispatcher().EmitDepth(2, level, callerTarget(2), msg, fields...)
}

func emitf(level core.Level, format string, args []interface{}) {
	Dispatcher().EmitFuncDepth(2, level, callerTarget(2), func() string {
		return fmt.Sprintf(format, args...)
	})
}

// Trace logs a trace message
func Trace(msg string, fields ...core.Field) { emit(core.TraceLevel, msg, fields) }

// Debug logs a debug message
func Debug(msg string, fields ...core.Field) { emit(core.DebugLevel, msg, fields) }

// Info logs an info message
func Info(msg string, fields ...core.Field) { emit(core.InfoLevel, msg, fields) }

// Warn logs a warning message
func Warn(msg string, fields ...core.Field) { emit(core.WarnLevel, msg, fields) }

// Error logs an error message
func Error(msg string, fields ...core.Field) { emit(core.ErrorLevel, msg, fields) }

// Tracef logs a formatted trace message
func Tracef(format string, args ...interface{}) { emitf(core.TraceLevel, format, args) }

// Debugf logs a formatted debug message
func Debugf(format string, args ...interface{}) { emitf(core.DebugLevel, format, args) }

// Infof logs a formatted info message
func Infof(format string, args ...interface{}) { emitf(core.InfoLevel, format, args) }

// Warnf logs a formatted warning message
func Warnf(format string, args ...interface{}) { emitf(core.WarnLevel, format, args) }

// Errorf logs a formatted error message
func Errorf(format string, args ...interface{}) { emitf(core.ErrorLevel, format, args) }

// With returns a logger for the calling package carrying fields.
func With(fields ...core.Field) *Logger {
	return Get(callerTarget(1)).With(fields...)
}
