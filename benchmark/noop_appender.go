package benchmark

import (
	"github.com/philipp01105/hierlog/appender"
	"github.com/philipp01105/hierlog/core"
)

// noopAppender measures dispatch without any I/O.
type noopAppender struct{}

func newNoopAppender() appender.Appender {
	return noopAppender{}
}

func (noopAppender) Append(_ core.Level, p []byte) error {
	_ = len(p)
	return nil
}

func (noopAppender) Flush() error { return nil }

func (noopAppender) Close() error { return nil }
