package benchmark

import (
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/philipp01105/hierlog/appender"
	"github.com/philipp01105/hierlog/core"
	"github.com/philipp01105/hierlog/dispatch"
	"github.com/philipp01105/hierlog/filter"
	"github.com/philipp01105/hierlog/hierarchy"
	"github.com/philipp01105/hierlog/layout"
	"github.com/philipp01105/hierlog/logger"
	"github.com/philipp01105/hierlog/slogbridge"
)

func patternLogger(b *testing.B, pattern string, opts ...dispatch.Option) *logger.Logger {
	b.Helper()
	d := newDispatcher(b, rootOnly(core.DebugLevel), []*dispatch.Sink{discardSink(layout.MustPatternEncoder(pattern))}, opts...)
	return logger.New(d, "bench::service")
}

// Benchmark Info logging with a growing number of fields
func BenchmarkInfoFields(b *testing.B) {
	all := []logger.Field{
		logger.String("method", "GET"),
		logger.String("path", "/api/users"),
		logger.Int("status", 200),
		logger.Duration("latency", 150*time.Millisecond),
		logger.Bool("cached", false),
		logger.Int64("bytes", 1024),
		logger.Float64("ratio", 0.75),
		logger.String("user", "u-42"),
		logger.String("region", "eu-west-1"),
		logger.Int("attempt", 1),
	}
	for _, n := range []int{0, 1, 5, 10} {
		b.Run(fmt.Sprintf("%d", n), func(b *testing.B) {
			l := patternLogger(b, "{d} {l} {t} - {m} {K}{n}")
			fields := all[:n]
			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				l.Info("request handled", fields...)
			}
		})
	}
}

// Benchmark the level gate for enabled and disabled levels
func BenchmarkLevelGate(b *testing.B) {
	d := newDispatcher(b, rootOnly(core.InfoLevel), []*dispatch.Sink{{Name: "out", Encoder: layout.MustPatternEncoder(layout.DefaultPattern), Appender: newNoopAppender()}})
	l := logger.New(d, "bench")

	b.Run("Enabled", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			l.Info("enabled")
		}
	})
	b.Run("Disabled", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			l.Debug("disabled")
		}
	})
	b.Run("DisabledFormatted", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			l.Debugf("disabled %d", i)
		}
	})
}

// Benchmark pattern vs JSON encoders
func BenchmarkEncoders(b *testing.B) {
	encoders := []struct {
		name string
		enc  layout.Encoder
	}{
		{"PatternDefault", layout.MustPatternEncoder(layout.DefaultPattern)},
		{"PatternFields", layout.MustPatternEncoder("{d(%Y-%m-%d %H:%M:%S%.3f)(utc)} {l:<5} {t} - {m} {K}{n}")},
		{"PatternCaller", layout.MustPatternEncoder("{d} {l} {M} {f}:{L} - {m}{n}")},
		{"JSON", layout.NewJSONEncoder(layout.Config{})},
		{"JSONCaller", layout.NewJSONEncoder(layout.Config{IncludeCaller: true})},
	}
	for _, tt := range encoders {
		b.Run(tt.name, func(b *testing.B) {
			d := newDispatcher(b, rootOnly(core.DebugLevel), []*dispatch.Sink{discardSink(tt.enc)})
			l := logger.New(d, "bench")
			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				l.Info("encoded", logger.String("key", "value"), logger.Int("n", i))
			}
		})
	}
}

// Benchmark sync vs async appender
func BenchmarkSyncVsAsync(b *testing.B) {
	b.Run("Sync", func(b *testing.B) {
		d := newDispatcher(b, rootOnly(core.DebugLevel), []*dispatch.Sink{{
			Name:     "out",
			Encoder:  layout.MustPatternEncoder(layout.DefaultPattern),
			Appender: newNoopAppender(),
		}})
		l := logger.New(d, "bench")
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			l.Info("sync message")
		}
	})

	b.Run("Async", func(b *testing.B) {
		async := appender.NewAsync(newNoopAppender(), appender.AsyncConfig{
			Name:           "out",
			BufferSize:     10000,
			OverflowPolicy: map[core.Level]appender.OverflowPolicy{core.InfoLevel: appender.Block},
		})
		d := newDispatcher(b, rootOnly(core.DebugLevel), []*dispatch.Sink{{
			Name:     "out",
			Encoder:  layout.MustPatternEncoder(layout.DefaultPattern),
			Appender: async,
		}})
		l := logger.New(d, "bench")
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			l.Info("async message")
		}
	})
}

// Benchmark caller lookup cost
func BenchmarkWithCaller(b *testing.B) {
	b.Run("WithoutCaller", func(b *testing.B) {
		l := patternLogger(b, "{l} {t} - {m}{n}")
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			l.Info("message")
		}
	})

	b.Run("RenderedCaller", func(b *testing.B) {
		l := patternLogger(b, "{l} {t} {f}:{L} - {m}{n}")
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			l.Info("message")
		}
	})

	b.Run("ForcedCaller", func(b *testing.B) {
		l := patternLogger(b, "{l} {t} - {m}{n}", dispatch.WithCaller(true))
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			l.Info("message")
		}
	})
}

// Benchmark target resolution in trees of growing size and depth
func BenchmarkTargetResolution(b *testing.B) {
	for _, size := range []int{1, 100, 10000} {
		root := hierarchy.RootSpec{Level: core.InfoLevel, Appenders: []string{"out"}}
		builder := hierarchy.NewBuilder(root)
		for i := 0; i < size; i++ {
			level := core.DebugLevel
			if err := builder.Register(fmt.Sprintf("svc%d::db::pool", i), hierarchy.NodeSpec{Level: &level, Additive: true}); err != nil {
				b.Fatal(err)
			}
		}
		tree := builder.Build()

		for _, depth := range []int{1, 4, 8} {
			target := "svc0" + strings.Repeat("::x", depth-1)
			b.Run(fmt.Sprintf("Loggers%d/Depth%d", size, depth), func(b *testing.B) {
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					_ = tree.Resolve(target)
				}
			})
		}
	}
}

// Benchmark additive fan-out to several appenders
func BenchmarkFanOut(b *testing.B) {
	for _, n := range []int{1, 3, 6} {
		b.Run(fmt.Sprintf("%d", n), func(b *testing.B) {
			names := make([]string, n)
			sinks := make([]*dispatch.Sink, n)
			for i := range names {
				names[i] = fmt.Sprintf("out%d", i)
				sinks[i] = &dispatch.Sink{
					Name:     names[i],
					Encoder:  layout.MustPatternEncoder(layout.DefaultPattern),
					Appender: newNoopAppender(),
				}
			}
			// half the appenders on the root, the rest on the logger
			builder := hierarchy.NewBuilder(hierarchy.RootSpec{Level: core.DebugLevel, Appenders: names[:n/2]})
			if err := builder.Register("app::http", hierarchy.NodeSpec{Appenders: names[n/2:], Additive: true}); err != nil {
				b.Fatal(err)
			}
			d := newDispatcher(b, builder.Build(), sinks)
			l := logger.New(d, "app::http::handler")
			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				l.Info("fan out")
			}
		})
	}
}

// Benchmark filter chains in front of an appender
func BenchmarkFilters(b *testing.B) {
	target, err := filter.NewTarget("app::**", filter.Accept, filter.Reject)
	if err != nil {
		b.Fatal(err)
	}
	chains := []struct {
		name  string
		chain filter.Chain
	}{
		{"None", nil},
		{"Threshold", filter.Chain{filter.Threshold{Level: core.InfoLevel}}},
		{"Target", filter.Chain{target}},
		{"Field", filter.Chain{filter.FieldMatch{Key: "tenant", Value: "acme", OnMatch: filter.Accept, OnMismatch: filter.Neutral}}},
		{"All", filter.Chain{
			filter.Threshold{Level: core.InfoLevel},
			filter.FieldMatch{Key: "tenant", Value: "acme", OnMatch: filter.Accept, OnMismatch: filter.Neutral},
			target,
		}},
	}
	for _, tt := range chains {
		b.Run(tt.name, func(b *testing.B) {
			d := newDispatcher(b, rootOnly(core.DebugLevel), []*dispatch.Sink{{
				Name:     "out",
				Encoder:  layout.MustPatternEncoder(layout.DefaultPattern),
				Filters:  tt.chain,
				Appender: newNoopAppender(),
			}})
			l := logger.New(d, "app::billing")
			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				l.Info("filtered", logger.String("tenant", "acme"))
			}
		})
	}
}

// Benchmark logging while the configuration is swapped underneath
func BenchmarkReloadUnderLoad(b *testing.B) {
	newSnapshot := func() *dispatch.Snapshot {
		snap, err := dispatch.NewSnapshot(rootOnly(core.DebugLevel), &dispatch.Sink{
			Name:     "out",
			Encoder:  layout.MustPatternEncoder(layout.DefaultPattern),
			Appender: newNoopAppender(),
		})
		if err != nil {
			b.Fatal(err)
		}
		return snap
	}
	d := newDispatcher(b, rootOnly(core.DebugLevel), []*dispatch.Sink{{
		Name:     "out",
		Encoder:  layout.MustPatternEncoder(layout.DefaultPattern),
		Appender: newNoopAppender(),
	}})
	l := logger.New(d, "bench")

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_ = d.Reload(newSnapshot())
			}
		}
	}()

	b.ResetTimer()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			l.Info("reloading")
		}
	})
	b.StopTimer()
	close(stop)
	<-done
}

// Benchmark concurrent logging from child loggers
func BenchmarkConcurrentLogging(b *testing.B) {
	l := patternLogger(b, layout.DefaultPattern)
	b.ResetTimer()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		child := l.Named("worker").With(logger.String("pool", "default"))
		for pb.Next() {
			child.Info("concurrent message")
		}
	})
}

// Benchmark event pool recycling
func BenchmarkEventPool(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		e := core.GetEvent()
		e.Message = "pooled"
		core.PutEvent(e)
	}
}

// Benchmark the slog frontend
func BenchmarkSlogBridge(b *testing.B) {
	d := newDispatcher(b, rootOnly(core.DebugLevel), []*dispatch.Sink{discardSink(layout.MustPatternEncoder("{l} {t} - {m} {K}{n}"))})
	l := slog.New(slogbridge.NewHandler(d, "bench"))
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		l.Info("bridged", slog.String("key", "value"), slog.Int("n", i))
	}
}
