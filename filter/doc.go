// Package filter provides predicates that decide whether a log event is
// delivered.
//
// A Filter returns one of three verdicts: Accept, Reject or Neutral. A
// Chain evaluates its filters in configured order and the first
// non-Neutral verdict wins; when every filter is Neutral the event is
// accepted. This supports both common compositions:
//
//	// allow unless explicitly denied
//	filter.Chain{filter.Threshold{Level: core.InfoLevel}}
//
//	// deny unless explicitly allowed
//	filter.Chain{
//	    filter.LevelMatch{Level: core.ErrorLevel, OnMatch: filter.Accept},
//	    filter.Deny{},
//	}
//
// Filters run after the level gate, so they never see events that the
// effective level already rejected.
package filter
