package logger

import "github.com/philipp01105/hierlog/core"

// Level Re-export type and constants for convenience
type Level = core.Level

const (
	TraceLevel = core.TraceLevel
	DebugLevel = core.DebugLevel
	InfoLevel  = core.InfoLevel
	WarnLevel  = core.WarnLevel
	ErrorLevel = core.ErrorLevel
	OffLevel   = core.OffLevel
)

// ParseLevel converts a level name such as "warn" or "off" to a Level
func ParseLevel(s string) (Level, error) {
	return core.ParseLevel(s)
}
