// Package layout defines how events are serialized into bytes.
//
// Every encoder implements Encoder and writes into a caller-provided
// bytes.Buffer taken from the package pool (GetBuffer/PutBuffer), so the
// dispatch path does not allocate an intermediate slice per appender.
// Encoders rely on Go's Append-style functions (time.AppendFormat,
// strconv.AppendInt) to avoid per-call allocations.
//
// PatternEncoder renders a template of {specifier} placeholders. Its
// DefaultPattern produces lines such as
//
//	2021-04-27T19:37:27.190275-04:00 INFO app.db - connected
//
// and ParseDefault reads such a line back. JSONEncoder writes one JSON
// object per line.
//
// Buffers larger than 64 KiB are not returned to the pool to prevent
// a single large record from permanently inflating memory usage.
package layout
