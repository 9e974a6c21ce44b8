package layout

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/philipp01105/hierlog/core"
)

// Record is an event recovered from a line written with DefaultPattern.
type Record struct {
	Time    time.Time
	Level   core.Level
	Target  string
	Message string
}

// ErrMalformedRecord is returned by ParseDefault for lines that were not
// produced by the default pattern.
var ErrMalformedRecord = errors.New("malformed record")

// ParseDefault parses one line produced by DefaultPattern. The trailing
// newline is optional. Timestamps keep microsecond precision.
func ParseDefault(line string) (Record, error) {
	line = strings.TrimSuffix(line, "\n")

	ts, rest, ok := strings.Cut(line, " ")
	if !ok {
		return Record{}, fmt.Errorf("%w: missing level", ErrMalformedRecord)
	}
	t, err := time.Parse(DefaultTimeLayout, ts)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	lvl, rest, ok := strings.Cut(rest, " ")
	if !ok {
		return Record{}, fmt.Errorf("%w: missing target", ErrMalformedRecord)
	}
	level, err := parseLevelName(lvl)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	// Targets never contain spaces, so the first " - " ends the target.
	target, msg, ok := strings.Cut(rest, " - ")
	if !ok {
		return Record{}, fmt.Errorf("%w: missing separator", ErrMalformedRecord)
	}

	return Record{Time: t, Level: level, Target: target, Message: msg}, nil
}

func parseLevelName(s string) (core.Level, error) {
	for l := core.TraceLevel; l <= core.ErrorLevel; l++ {
		if l.String() == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown level %q", s)
}
