// Package dispatch is the routing core.
//
// A Dispatcher holds the active Snapshot behind an atomic pointer. For
// every event it:
//
//  1. takes a reference on the active snapshot,
//  2. resolves the target in the snapshot's logger tree,
//  3. drops the event if it is below the effective level, before an Event
//     is taken from the pool or a lazy message is built,
//  4. runs the logger filter chain,
//  5. for each effective appender runs the appender's filters, encodes
//     into a pooled buffer and appends.
//
// A failing or panicking appender is reported through the diagnostic
// channel and counted; the remaining appenders still get the event. An
// encoder failure produces a placeholder record instead of silence.
//
// Reload swaps in a new snapshot. A dispatch uses exactly one snapshot
// from start to end, so no event is delivered to a mix of old and new
// appenders. The old snapshot's appenders are flushed and closed after
// the last dispatch holding it returns.
package dispatch
