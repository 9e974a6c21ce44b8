package appender

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/philipp01105/hierlog/core"
)

// sizeTrackingWriter wraps an io.Writer and tracks total bytes written.
// Behind a bufio.Writer it also keeps the bytes of the first failed write:
// bufio stops writing after an error, so those are exactly the records
// still buffered, and reopening the file would otherwise discard them.
type sizeTrackingWriter struct {
	w         io.Writer
	written   int64
	buffered  bool
	unwritten []byte
}

func (s *sizeTrackingWriter) Write(p []byte) (n int, err error) {
	n, err = s.w.Write(p)
	s.written += int64(n)
	if err != nil && s.buffered && s.unwritten == nil {
		s.unwritten = append([]byte{}, p[n:]...)
	}
	return
}

func (s *sizeTrackingWriter) reset(w io.Writer, size int64) {
	s.w = w
	s.written = size
	s.unwritten = nil
}

// FileConfig holds configuration for the file appender
type FileConfig struct {
	// Path is the destination file. "~" and $VARIABLES are expanded.
	Path string
	// Truncate empties an existing file instead of appending to it
	Truncate bool
	// BufferSize enables a write buffer of that many bytes (0 = unbuffered).
	// Buffered records reach the file on Flush, Close, or when the buffer fills.
	BufferSize int
}

// File appends records to a single file
type File struct {
	fileBase
}

// fileBase contains the fields shared by File and RollingFile.
type fileBase struct {
	path       string
	file       *os.File
	bufWriter  *bufio.Writer
	sizeWriter sizeTrackingWriter
	bufferSize int
	mu         sync.Mutex
	closed     bool
	stats      *Stats
}

// NewFile opens the destination, creating parent directories. It fails
// when the path is not writable.
func NewFile(cfg FileConfig) (*File, error) {
	f := &File{}
	if err := f.init(cfg.Path, cfg.BufferSize, !cfg.Truncate); err != nil {
		return nil, err
	}
	return f, nil
}

func (b *fileBase) init(path string, bufferSize int, appendMode bool) error {
	if path == "" {
		return fmt.Errorf("file path is required")
	}
	expanded, err := ExpandPath(path)
	if err != nil {
		return err
	}
	b.path = expanded
	b.bufferSize = bufferSize
	b.stats = NewStats()
	return b.open(appendMode)
}

// open (re)opens b.path. The caller holds mu or owns b exclusively.
func (b *fileBase) open(appendMode bool) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(b.path), 0755); err != nil {
		return err
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if !appendMode {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(b.path, flags, 0644)
	if err != nil {
		return err
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return err
	}

	pending := b.sizeWriter.unwritten
	b.file = file
	b.sizeWriter.reset(file, info.Size())
	if b.bufferSize > 0 {
		b.sizeWriter.buffered = true
		if b.bufWriter == nil {
			b.bufWriter = bufio.NewWriterSize(&b.sizeWriter, b.bufferSize)
		} else {
			b.bufWriter.Reset(&b.sizeWriter)
		}
	}
	if len(pending) > 0 {
		// Records that failed to reach the previous file go first.
		n, err := file.Write(pending)
		b.sizeWriter.written += int64(n)
		if err != nil {
			b.stats.IncrementFailed()
			return fmt.Errorf("%d buffered bytes lost: %w", len(pending)-n, err)
		}
	}
	return nil
}

// size returns the bytes in the file plus the bytes still buffered.
func (b *fileBase) size() int64 {
	n := b.sizeWriter.written
	if b.bufWriter != nil {
		n += int64(b.bufWriter.Buffered())
	}
	return n
}

func (b *fileBase) write(p []byte) error {
	var err error
	if b.bufWriter != nil {
		_, err = b.bufWriter.Write(p)
	} else {
		_, err = b.sizeWriter.Write(p)
	}
	return b.stats.count(err)
}

func (b *fileBase) flushLocked() error {
	if b.file == nil {
		return nil
	}
	if b.bufWriter != nil {
		if err := b.bufWriter.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// closeFile flushes, syncs and closes the current file.
func (b *fileBase) closeFile() error {
	if b.file == nil {
		return nil
	}
	err := b.flushLocked()
	if syncErr := b.file.Sync(); err == nil {
		err = syncErr
	}
	if closeErr := b.file.Close(); err == nil {
		err = closeErr
	}
	b.file = nil
	return err
}

// Path returns the expanded destination path
func (b *fileBase) Path() string { return b.path }

// Stats returns a snapshot of the current statistics
func (b *fileBase) Stats() Snapshot { return b.stats.GetSnapshot() }

// Append writes one record
func (f *File) Append(_ core.Level, p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	return f.write(p)
}

// Flush writes buffered records to the file
func (f *File) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushLocked()
}

// Close flushes and closes the file
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return f.closeFile()
}
