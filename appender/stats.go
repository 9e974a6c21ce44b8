package appender

import (
	"sync/atomic"

	"github.com/philipp01105/hierlog/core"
)

// OverflowPolicy defines how an async appender handles a full queue
type OverflowPolicy int

const (
	// DropNewest drops the record being appended when the queue is full
	DropNewest OverflowPolicy = iota
	// DropOldest drops the oldest queued record to make room
	DropOldest
	// Block waits for room (with timeout), then writes synchronously
	Block
)

// String returns the string representation of the policy
func (p OverflowPolicy) String() string {
	switch p {
	case DropNewest:
		return "DropNewest"
	case DropOldest:
		return "DropOldest"
	case Block:
		return "Block"
	default:
		return "Unknown"
	}
}

// ParseOverflowPolicy accepts drop_newest, drop_oldest and block.
func ParseOverflowPolicy(s string) (OverflowPolicy, bool) {
	switch s {
	case "drop_newest", "DropNewest", "":
		return DropNewest, true
	case "drop_oldest", "DropOldest":
		return DropOldest, true
	case "block", "Block":
		return Block, true
	}
	return DropNewest, false
}

// DefaultLevelPolicy returns the default level-based overflow policies
func DefaultLevelPolicy() map[core.Level]OverflowPolicy {
	return map[core.Level]OverflowPolicy{
		core.TraceLevel: DropNewest, // Drop trace records when full
		core.DebugLevel: DropNewest, // Drop debug records when full
		core.InfoLevel:  DropNewest, // Drop info records when full
		core.WarnLevel:  DropNewest, // Drop warn records when full
		core.ErrorLevel: Block,      // Block for errors (with timeout)
	}
}

// Stats tracks appender statistics
type Stats struct {
	// Separate atomic counters per level
	dropped [core.NumLevels]atomic.Uint64
	// blocked counts times an append blocked due to a full queue
	blocked atomic.Uint64
	// processed counts records written successfully
	processed atomic.Uint64
	// failed counts records the destination rejected
	failed atomic.Uint64
	// lost counts records discarded when Close gave up draining
	lost atomic.Uint64
}

// NewStats creates a new Stats instance
func NewStats() *Stats {
	return &Stats{}
}

// IncrementDropped atomically increments the dropped counter for a level
func (s *Stats) IncrementDropped(level core.Level) {
	if level < 0 || int(level) >= core.NumLevels {
		return
	}
	s.dropped[level].Add(1)
}

// IncrementBlocked atomically increments the blocked counter
func (s *Stats) IncrementBlocked() { s.blocked.Add(1) }

// IncrementProcessed atomically increments the processed counter
func (s *Stats) IncrementProcessed() { s.processed.Add(1) }

// IncrementFailed atomically increments the failed counter
func (s *Stats) IncrementFailed() { s.failed.Add(1) }

// AddLost adds n records to the lost counter
func (s *Stats) AddLost(n int) { s.lost.Add(uint64(n)) }

// GetDropped returns the dropped count for a level
func (s *Stats) GetDropped(level core.Level) uint64 {
	if level < 0 || int(level) >= core.NumLevels {
		return 0
	}
	return s.dropped[level].Load()
}

// GetTotalDropped returns the total dropped across all levels
func (s *Stats) GetTotalDropped() uint64 {
	var total uint64
	for i := range s.dropped {
		total += s.dropped[i].Load()
	}
	return total
}

// Reset resets all counters to zero
func (s *Stats) Reset() {
	for i := range s.dropped {
		s.dropped[i].Store(0)
	}
	s.blocked.Store(0)
	s.processed.Store(0)
	s.failed.Store(0)
	s.lost.Store(0)
}

// Snapshot is a point-in-time copy of Stats
type Snapshot struct {
	DroppedTotal   map[core.Level]uint64
	BlockedTotal   uint64
	ProcessedTotal uint64
	FailedTotal    uint64
	LostTotal      uint64
}

// GetSnapshot returns a snapshot of current statistics
func (s *Stats) GetSnapshot() Snapshot {
	snap := Snapshot{
		DroppedTotal:   make(map[core.Level]uint64, core.NumLevels),
		BlockedTotal:   s.blocked.Load(),
		ProcessedTotal: s.processed.Load(),
		FailedTotal:    s.failed.Load(),
		LostTotal:      s.lost.Load(),
	}
	for l := core.TraceLevel; l <= core.ErrorLevel; l++ {
		snap.DroppedTotal[l] = s.GetDropped(l)
	}
	return snap
}

// count records the outcome of one write.
func (s *Stats) count(err error) error {
	if err != nil {
		s.IncrementFailed()
		return err
	}
	s.IncrementProcessed()
	return nil
}
