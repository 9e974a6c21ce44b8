package appender

import (
	"io"
	"os"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/philipp01105/hierlog/core"
)

// ConsoleTarget selects the standard stream of a Console appender
type ConsoleTarget int

const (
	// Stdout writes to standard output
	Stdout ConsoleTarget = iota
	// Stderr writes to standard error
	Stderr
)

// String returns the configuration name of the target
func (t ConsoleTarget) String() string {
	if t == Stderr {
		return "stderr"
	}
	return "stdout"
}

// ConsoleConfig holds configuration for the console appender
type ConsoleConfig struct {
	// Target is the standard stream to write to (default: Stdout)
	Target ConsoleTarget
	// Writer overrides Target, e.g. a bytes.Buffer in tests
	Writer io.Writer
}

// Console writes records to stdout, stderr or an injected writer
type Console struct {
	mu       sync.Mutex
	writer   io.Writer
	terminal bool
	closed   bool
	stats    *Stats
}

// NewConsole creates a console appender. Standard streams are wrapped with
// go-colorable so ANSI sequences work on every platform.
func NewConsole(cfg ConsoleConfig) *Console {
	c := &Console{stats: NewStats()}

	if cfg.Writer != nil {
		c.writer = cfg.Writer
		if f, ok := cfg.Writer.(*os.File); ok {
			c.terminal = isTerminal(f)
		}
		return c
	}

	f := os.Stdout
	if cfg.Target == Stderr {
		f = os.Stderr
	}
	c.terminal = isTerminal(f)
	c.writer = colorable.NewColorable(f)
	return c
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// IsTerminal reports whether the destination is an interactive terminal.
// Encoders only emit color when it is.
func (c *Console) IsTerminal() bool { return c.terminal }

// Append writes one record
func (c *Console) Append(_ core.Level, p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	_, err := c.writer.Write(p)
	return c.stats.count(err)
}

// Flush flushes writers that buffer, such as a bufio.Writer.
// Standard streams are unbuffered.
func (c *Console) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return flushWriter(c.writer)
}

// Close flushes the writer. Standard streams are never closed.
func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return flushWriter(c.writer)
}

// Stats returns a snapshot of the current statistics
func (c *Console) Stats() Snapshot {
	return c.stats.GetSnapshot()
}

func flushWriter(w io.Writer) error {
	if f, ok := w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}
