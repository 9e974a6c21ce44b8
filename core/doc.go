// Package core defines the shared types used across hierlog.
//
// It provides the Level type for severity gating, the Event type that
// represents a single log event, the Field type for typed key-value
// metadata, and the error taxonomy (ConfigError, AppendError, EncodeError)
// used by every other package.
//
// Event objects are pooled via sync.Pool to keep the dispatch path
// allocation-free. The dispatcher gets an Event with GetEvent only after
// the level gate has passed and returns it with PutEvent once every
// appender has been attempted. Filters, encoders and appenders must not
// keep a reference to the Event after they return.
//
// Targets are hierarchical names separated by "." or "::"; the Event keeps
// the target exactly as it was emitted so layouts print it unchanged.
//
// All timestamps come from Now, which reads the xclock process clock.
package core
