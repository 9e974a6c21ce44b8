package main

import (
	"github.com/philipp01105/hierlog/dispatch"
	"github.com/philipp01105/hierlog/logger"
)

// sample is a target and the suffix its messages carry.
type sample struct {
	target string
	from   string
}

var samples = []sample{
	{target: "guide"},
	{target: "guide::foo::bar", from: "bar"},
	{target: "guide::foo::baz", from: "baz"},
	{target: "guide::fee::fi", from: "fi"},
	{target: "guide::fee::fi::fo::fum", from: "fum"},
}

func logSamples(d *dispatch.Dispatcher) {
	for _, s := range samples {
		s.log(logger.New(d, s.target))
	}
}

func (s sample) log(l *logger.Logger) {
	l.Info(s.message("an info"))
	l.Error(s.message("an error"))
	l.Warn(s.message("a warning"))
	l.Debug(s.message("a debug"))
	l.Trace(s.message("a trace"))
}

func (s sample) message(kind string) string {
	if s.from == "" {
		return "This is " + kind + " message."
	}
	return "This is " + kind + " message from " + s.from + "."
}
