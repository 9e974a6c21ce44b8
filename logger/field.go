package logger

import (
	"time"

	"github.com/philipp01105/hierlog/core"
)

// Field is a typed key/value pair attached to an event
type Field = core.Field

// String creates a string field
func String(key, val string) Field { return core.String(key, val) }

// Int creates an int field
func Int(key string, val int) Field { return core.Int(key, val) }

// Int64 creates an int64 field
func Int64(key string, val int64) Field { return core.Int64(key, val) }

// Float64 creates a float64 field
func Float64(key string, val float64) Field { return core.Float64(key, val) }

// Bool creates a bool field
func Bool(key string, val bool) Field { return core.Bool(key, val) }

// Time creates a time field
func Time(key string, val time.Time) Field { return core.Time(key, val) }

// Duration creates a duration field
func Duration(key string, val time.Duration) Field { return core.Duration(key, val) }

// Err creates an "error" field
func Err(err error) Field { return core.Err(err) }

// Any creates a field with any value
func Any(key string, val interface{}) Field { return core.Any(key, val) }
