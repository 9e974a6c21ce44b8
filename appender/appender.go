package appender

import (
	"errors"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"

	"github.com/philipp01105/hierlog/core"
)

// Appender writes encoded records to one destination.
//
// Append receives one complete record terminated by a newline. The slice is
// only valid for the duration of the call. Implementations serialize their
// own writes and must be safe for concurrent use.
type Appender interface {
	// Append writes one encoded record
	Append(level core.Level, p []byte) error

	// Flush pushes buffered records to the destination
	Flush() error

	// Close flushes and releases the destination. Append after Close
	// returns ErrClosed.
	Close() error
}

// StatsProvider is implemented by appenders that keep delivery counters.
type StatsProvider interface {
	Stats() Snapshot
}

// ErrorHandler receives failures that happen off the caller's path, such as
// a failed roll or an async write.
type ErrorHandler func(err error)

// ErrClosed is returned by Append on a closed appender.
var ErrClosed = errors.New("appender closed")

// ExpandPath resolves a leading "~" and $VARIABLES in a destination path.
func ExpandPath(path string) (string, error) {
	expanded, err := homedir.Expand(os.ExpandEnv(path))
	if err != nil {
		return "", err
	}
	return expanded, nil
}

// newStoppedTimer creates a timer that is stopped and drained, ready for Reset.
func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	if !t.Stop() {
		<-t.C
	}
	return t
}

// stopTimer stops t and drains its channel so that it can be Reset.
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
