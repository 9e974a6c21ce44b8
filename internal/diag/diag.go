// Package diag is the engine's own fallback channel. Failures inside the
// logging pipeline cannot be logged through the pipeline itself, so they
// are written to stderr through hclog (rate limited per source) and
// counted with go-metrics.
package diag

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	metrics "github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"

	"github.com/philipp01105/hierlog/core"
)

// ServiceName prefixes every metric key and names the diagnostic logger.
const ServiceName = "hierlog"

// DefaultReportInterval is the minimum time between two log lines for
// the same source.
const DefaultReportInterval = time.Second

var (
	logger   atomic.Pointer[hclog.Logger]
	sink     atomic.Pointer[metrics.Metrics]
	interval atomic.Int64

	limiterMu sync.Mutex
	limiter   = map[string]*window{}
)

type window struct {
	last       time.Time
	suppressed int
}

func init() {
	SetLogger(hclog.New(&hclog.LoggerOptions{
		Name:   ServiceName,
		Level:  hclog.Warn,
		Output: os.Stderr,
	}))
	SetSink(&metrics.BlackholeSink{})
	interval.Store(int64(DefaultReportInterval))
}

// SetLogger replaces the diagnostic logger.
func SetLogger(l hclog.Logger) {
	if l == nil {
		l = hclog.NewNullLogger()
	}
	logger.Store(&l)
}

// Logger returns the diagnostic logger.
func Logger() hclog.Logger {
	return *logger.Load()
}

// SetSink routes internal counters to s, e.g. a metrics.InmemSink in tests
// or a statsd sink in production.
func SetSink(s metrics.MetricSink) {
	cfg := metrics.DefaultConfig(ServiceName)
	cfg.EnableHostname = false
	cfg.EnableHostnameLabel = false
	cfg.EnableRuntimeMetrics = false
	m, err := metrics.New(cfg, s)
	if err != nil {
		Logger().Error("metrics sink rejected", "error", err)
		return
	}
	sink.Store(m)
}

// SetReportInterval changes how often one source may log. Zero disables
// rate limiting.
func SetReportInterval(d time.Duration) {
	interval.Store(int64(d))
	limiterMu.Lock()
	limiter = map[string]*window{}
	limiterMu.Unlock()
}

// allow reports whether key may log now, and how many reports were
// swallowed since it last did.
func allow(key string) (bool, int) {
	d := time.Duration(interval.Load())
	if d <= 0 {
		return true, 0
	}
	now := core.Now()

	limiterMu.Lock()
	defer limiterMu.Unlock()
	w, ok := limiter[key]
	if !ok {
		limiter[key] = &window{last: now}
		return true, 0
	}
	if now.Sub(w.last) < d {
		w.suppressed++
		return false, 0
	}
	n := w.suppressed
	w.last = now
	w.suppressed = 0
	return true, n
}

func incr(key []string, name string, n float32) {
	sink.Load().IncrCounterWithLabels(key, n, []metrics.Label{{Name: "appender", Value: name}})
}

func report(key, msg, appender string, err error) {
	ok, suppressed := allow(key + "/" + appender)
	if !ok {
		return
	}
	args := []interface{}{"appender", appender, "error", err}
	if suppressed > 0 {
		args = append(args, "suppressed", suppressed)
	}
	Logger().Error(msg, args...)
}

// AppendError records a failed write, flush or close of an appender.
func AppendError(appender string, err error) {
	incr([]string{"appender", "errors"}, appender, 1)
	report("append", "appender failed", appender, err)
}

// EncodeError records an encoder failure; the event was written with a
// placeholder instead.
func EncodeError(appender string, err error) {
	incr([]string{"encode", "errors"}, appender, 1)
	report("encode", "encoder failed", appender, err)
}

// FilterError records a logger filter that panicked; the event was
// dropped.
func FilterError(target string, err error) {
	sink.Load().IncrCounter([]string{"filter", "errors"}, 1)
	ok, suppressed := allow("filter")
	if !ok {
		return
	}
	args := []interface{}{"target", target, "error", err}
	if suppressed > 0 {
		args = append(args, "suppressed", suppressed)
	}
	Logger().Error("logger filter failed", args...)
}

// RollError records a failed file roll. The appender keeps writing to the
// current file.
func RollError(appender string, err error) {
	incr([]string{"roll", "errors"}, appender, 1)
	report("roll", "file roll failed", appender, err)
}

// RecordsLost records events an async appender discarded on shutdown.
func RecordsLost(appender string, n int) {
	if n <= 0 {
		return
	}
	incr([]string{"records", "lost"}, appender, float32(n))
	Logger().Warn("records lost on close", "appender", appender, "count", n)
}

// Reloaded records that a new configuration snapshot became active.
func Reloaded(id string) {
	sink.Load().IncrCounter([]string{"snapshot", "reloads"}, 1)
	Logger().Debug("configuration snapshot active", "snapshot", id)
}

// Warn logs a one-off warning that is not tied to an appender.
func Warn(msg string, args ...interface{}) {
	Logger().Warn(msg, args...)
}
