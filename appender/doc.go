// Package appender provides the Appender interface and its built-in
// implementations for writing encoded records to console and file outputs.
//
// Appenders receive records that the dispatcher has already encoded; they
// own only the destination. Every appender serializes its own writes with
// a mutex held for the duration of one write, so one slow appender never
// blocks another.
//
// Built-in appenders:
//
//   - Console writes to stdout, stderr or an injected io.Writer. Standard
//     streams are wrapped with go-colorable and probed with go-isatty so
//     encoders can decide whether to emit color.
//   - File appends to a single file, creating parent directories.
//   - RollingFile consults a Trigger (SizeTrigger, TimeTrigger) before
//     every write and hands the full file to a Roller (DeleteRoller,
//     FixedWindowRoller, TimestampRoller). A failed roll is reported
//     through the ErrorHandler and the record is written to the pre-roll
//     file.
//   - Async puts a bounded queue and one writer goroutine in front of any
//     appender. When the queue is full, it applies a per-level
//     OverflowPolicy: DropNewest (default for Trace through Warn),
//     DropOldest, or Block with a configurable timeout (default for Error)
//     followed by a synchronous write. Close drains the queue for at most
//     DrainTimeout and reports the records it had to discard.
//
// Appenders track processed, failed, dropped, blocked and lost counts via
// the Stats type, which can be queried at runtime for monitoring.
package appender
