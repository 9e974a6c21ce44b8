package benchmark

import (
	"context"
	"io"
	"testing"

	"github.com/philipp01105/hierlog/appender"
	"github.com/philipp01105/hierlog/core"
	"github.com/philipp01105/hierlog/dispatch"
	"github.com/philipp01105/hierlog/hierarchy"
	"github.com/philipp01105/hierlog/layout"
	"github.com/philipp01105/hierlog/logger"
)

// newDispatcher activates a tree over sinks and shuts it down when the
// benchmark ends.
func newDispatcher(b *testing.B, tree *hierarchy.Tree, sinks []*dispatch.Sink, opts ...dispatch.Option) *dispatch.Dispatcher {
	b.Helper()
	snap, err := dispatch.NewSnapshot(tree, sinks...)
	if err != nil {
		b.Fatal(err)
	}
	d, err := dispatch.New(snap, opts...)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = d.Shutdown(context.Background()) })
	return d
}

// rootOnly is a tree whose root sends everything at level to out.
func rootOnly(level core.Level) *hierarchy.Tree {
	return hierarchy.NewBuilder(hierarchy.RootSpec{Level: level, Appenders: []string{"out"}}).Build()
}

func discardSink(enc layout.Encoder) *dispatch.Sink {
	return &dispatch.Sink{
		Name:     "out",
		Encoder:  enc,
		Appender: appender.NewConsole(appender.ConsoleConfig{Writer: io.Discard}),
	}
}

// newJSONLogger returns a logger that writes JSON to io.Discard, the
// setup every framework gets in the competitive benchmarks.
func newJSONLogger(b *testing.B, level core.Level) *logger.Logger {
	b.Helper()
	d := newDispatcher(b, rootOnly(level), []*dispatch.Sink{discardSink(layout.NewJSONEncoder(layout.Config{}))})
	return logger.New(d, "bench")
}
