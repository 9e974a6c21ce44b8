package filter

import (
	"github.com/philipp01105/hierlog/core"
)

// Verdict is the outcome of a filter decision.
type Verdict int8

const (
	// Neutral defers the decision to the next filter in the chain
	Neutral Verdict = iota
	// Accept lets the event through without consulting later filters
	Accept
	// Reject drops the event without consulting later filters
	Reject
)

// String returns the string representation of the verdict
func (v Verdict) String() string {
	switch v {
	case Neutral:
		return "neutral"
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// ParseVerdict converts "accept", "reject" or "neutral" to a Verdict.
func ParseVerdict(s string) (Verdict, bool) {
	switch s {
	case "neutral", "":
		return Neutral, true
	case "accept":
		return Accept, true
	case "reject", "deny":
		return Reject, true
	default:
		return Neutral, false
	}
}

// Filter decides whether an event should be delivered.
type Filter interface {
	Decide(e *core.Event) Verdict
}

// Func adapts an ordinary function to the Filter interface.
type Func func(e *core.Event) Verdict

// Decide calls f(e).
func (f Func) Decide(e *core.Event) Verdict { return f(e) }

// Chain evaluates filters in order. The first non-Neutral verdict wins;
// a chain where every filter is Neutral (or an empty chain) accepts.
type Chain []Filter

// Decide returns the chain's verdict, never Neutral.
func (c Chain) Decide(e *core.Event) Verdict {
	for _, f := range c {
		if v := f.Decide(e); v != Neutral {
			return v
		}
	}
	return Accept
}

// Allows reports whether the chain lets the event through.
func (c Chain) Allows(e *core.Event) bool {
	if len(c) == 0 {
		return true
	}
	return c.Decide(e) != Reject
}
