package logger

import (
	"io"
	"testing"

	"github.com/philipp01105/hierlog/appender"
	"github.com/philipp01105/hierlog/dispatch"
	"github.com/philipp01105/hierlog/hierarchy"
	"github.com/philipp01105/hierlog/layout"
)

func benchLogger(b *testing.B, pattern string) *Logger {
	b.Helper()
	tree := hierarchy.NewBuilder(hierarchy.RootSpec{Level: InfoLevel, Appenders: []string{"out"}}).Build()
	snap, err := dispatch.NewSnapshot(tree, &dispatch.Sink{
		Name:     "out",
		Encoder:  layout.MustPatternEncoder(pattern),
		Appender: appender.NewConsole(appender.ConsoleConfig{Writer: io.Discard}),
	})
	if err != nil {
		b.Fatal(err)
	}
	d, err := dispatch.New(snap)
	if err != nil {
		b.Fatal(err)
	}
	return New(d, "bench::logger")
}

// BenchmarkInfoNoFields benchmarks Info() with no fields using a discard writer.
func BenchmarkInfoNoFields(b *testing.B) {
	log := benchLogger(b, layout.DefaultPattern)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		log.Info("test message")
	}
}

// BenchmarkInfoWith2Fields benchmarks Info() with 2 string fields.
func BenchmarkInfoWith2Fields(b *testing.B) {
	log := benchLogger(b, "{d} {l} {t} - {m} {K}{n}")

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		log.Info("test message", String("k1", "v1"), String("k2", "v2"))
	}
}

// BenchmarkLevelCheck measures an event dropped by the level gate.
func BenchmarkLevelCheck(b *testing.B) {
	log := benchLogger(b, layout.DefaultPattern)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		log.Debug("debug message", String("key", "value"))
	}
}

// BenchmarkDebugfFiltered shows that filtered f-variants skip formatting.
func BenchmarkDebugfFiltered(b *testing.B) {
	log := benchLogger(b, layout.DefaultPattern)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		log.Debugf("value %d", i)
	}
}

// BenchmarkWithFields measures a logger carrying context fields.
func BenchmarkWithFields(b *testing.B) {
	log := benchLogger(b, "{m} {K}{n}").With(String("service", "api"))

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		log.Info("test message", Int("i", i))
	}
}
