package filter

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/philipp01105/hierlog/core"
)

// Threshold rejects events below Level and is Neutral otherwise.
type Threshold struct {
	Level core.Level
}

func (t Threshold) Decide(e *core.Event) Verdict {
	if e.Level < t.Level {
		return Reject
	}
	return Neutral
}

// LevelMatch returns OnMatch for events at exactly Level and OnMismatch
// for everything else.
type LevelMatch struct {
	Level      core.Level
	OnMatch    Verdict
	OnMismatch Verdict
}

func (m LevelMatch) Decide(e *core.Event) Verdict {
	if e.Level == m.Level {
		return m.OnMatch
	}
	return m.OnMismatch
}

// Target matches the event target against a doublestar glob. Target
// segments are compared as path segments, so "svc.*" matches "svc.db"
// but not "svc.db.pool", while "svc.**" matches both.
type Target struct {
	pattern    string
	OnMatch    Verdict
	OnMismatch Verdict
}

// NewTarget compiles a target glob. Segments in the pattern may be
// separated by "." or "::", like targets themselves.
func NewTarget(pattern string, onMatch, onMismatch Verdict) (*Target, error) {
	p := toPath(pattern)
	if !doublestar.ValidatePattern(p) {
		return nil, doublestar.ErrBadPattern
	}
	return &Target{pattern: p, OnMatch: onMatch, OnMismatch: onMismatch}, nil
}

func (t *Target) Decide(e *core.Event) Verdict {
	ok, err := doublestar.Match(t.pattern, toPath(e.Target))
	if err == nil && ok {
		return t.OnMatch
	}
	return t.OnMismatch
}

// toPath rewrites a hierarchical target into a slash separated path so
// that glob segment rules apply per target segment.
func toPath(target string) string {
	target = strings.ReplaceAll(target, "::", "/")
	return strings.ReplaceAll(target, ".", "/")
}

// FieldMatch returns OnMatch when the event carries a metadata field Key
// whose string value equals Value. An empty Value matches any value.
type FieldMatch struct {
	Key        string
	Value      string
	OnMatch    Verdict
	OnMismatch Verdict
}

func (m FieldMatch) Decide(e *core.Event) Verdict {
	f, ok := core.Lookup(e.Fields, m.Key)
	if ok && (m.Value == "" || f.StringValue() == m.Value) {
		return m.OnMatch
	}
	return m.OnMismatch
}

// Deny rejects every event. Placed last in a chain it turns the chain into
// "deny unless explicitly accepted".
type Deny struct{}

func (Deny) Decide(*core.Event) Verdict { return Reject }
