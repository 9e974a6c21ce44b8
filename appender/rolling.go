package appender

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/philipp01105/hierlog/core"
	"github.com/philipp01105/hierlog/internal/diag"
)

// DefaultRetryInterval is how long a RollingFile waits before retrying a
// failed roll.
const DefaultRetryInterval = 10 * time.Second

// RollingConfig holds configuration for the rolling file appender
type RollingConfig struct {
	// Name identifies the appender in diagnostics
	Name string
	// Path is the active file. "~" and $VARIABLES are expanded.
	Path string
	// Trigger decides when to roll (required)
	Trigger Trigger
	// Roller disposes of the full file (required)
	Roller Roller
	// BufferSize enables a write buffer of that many bytes (0 = unbuffered)
	BufferSize int
	// RetryInterval delays the next roll attempt after a failure
	// (default: DefaultRetryInterval)
	RetryInterval time.Duration
	// ErrorHandler receives roll failures (default: internal diagnostics)
	ErrorHandler ErrorHandler
}

// RollingFile is a file appender that rolls its file when the trigger fires.
// A failed roll never loses the record: the pre-roll file is reopened and
// written, and the roll is retried after RetryInterval.
type RollingFile struct {
	fileBase
	name          string
	trigger       Trigger
	roller        Roller
	opened        time.Time
	retryInterval time.Duration
	nextAttempt   time.Time
	onError       ErrorHandler
}

// NewRollingFile opens the active file in append mode.
func NewRollingFile(cfg RollingConfig) (*RollingFile, error) {
	if cfg.Trigger == nil {
		return nil, fmt.Errorf("rolling file %q: trigger is required", cfg.Name)
	}
	if cfg.Roller == nil {
		return nil, fmt.Errorf("rolling file %q: roller is required", cfg.Name)
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.ErrorHandler == nil {
		name := cfg.Name
		cfg.ErrorHandler = func(err error) { diag.RollError(name, err) }
	}

	r := &RollingFile{
		name:          cfg.Name,
		trigger:       cfg.Trigger,
		roller:        cfg.Roller,
		opened:        core.Now(),
		retryInterval: cfg.RetryInterval,
		onError:       cfg.ErrorHandler,
	}
	if err := r.init(cfg.Path, cfg.BufferSize, true); err != nil {
		return nil, err
	}
	return r, nil
}

// Append writes one record, rolling first when the trigger fires
func (r *RollingFile) Append(_ core.Level, p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	now := core.Now()
	if !now.Before(r.nextAttempt) {
		state := FileState{Path: r.path, Size: r.size(), Pending: len(p), Opened: r.opened}
		if r.trigger.ShouldRoll(state, now) {
			if err := r.roll(now); err != nil {
				r.nextAttempt = now.Add(r.retryInterval)
				r.onError(&core.AppendError{Appender: r.name, Op: "roll", Err: err})
				if r.file == nil {
					return err
				}
			}
		}
	}
	return r.write(p)
}

// roll closes the active file, hands it to the roller and opens a fresh one.
// On failure the pre-roll file is reopened in append mode.
func (r *RollingFile) roll(now time.Time) error {
	if err := r.closeFile(); err != nil {
		if openErr := r.open(true); openErr != nil {
			return multierr.Append(err, openErr)
		}
		return err
	}
	if err := r.roller.Roll(r.path, now); err != nil {
		if openErr := r.open(true); openErr != nil {
			return multierr.Append(err, openErr)
		}
		return err
	}
	if err := r.open(true); err != nil {
		return err
	}
	r.opened = now
	r.nextAttempt = time.Time{}
	return nil
}

// Flush writes buffered records to the file
func (r *RollingFile) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

// Close flushes and closes the active file
func (r *RollingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.closeFile()
}
