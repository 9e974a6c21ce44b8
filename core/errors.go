package core

import (
	"fmt"
)

// ConfigError reports an invalid configuration snapshot. When a
// ConfigError is returned the previously active snapshot stays in effect.
// Several problems found in one pass are combined into Err with multierr.
type ConfigError struct {
	Op  string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Op == "" {
		return "invalid logging configuration: " + e.Err.Error()
	}
	return fmt.Sprintf("invalid logging configuration (%s): %v", e.Op, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// AppendError reports a failure of a single appender to write, flush,
// roll or close. It is never propagated to the code that emitted the event.
type AppendError struct {
	Appender string
	Op       string
	Err      error
}

func (e *AppendError) Error() string {
	return fmt.Sprintf("appender %q: %s: %v", e.Appender, e.Op, e.Err)
}

func (e *AppendError) Unwrap() error { return e.Err }

// EncodeError reports that an appender's encoder could not render an event.
type EncodeError struct {
	Appender string
	Err      error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("appender %q: encode: %v", e.Appender, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }
