package core

import (
	"time"

	"github.com/trickstertwo/xclock"
)

// Now returns the current time from the process clock. Every timestamp the
// framework produces (event times, roll triggers) goes through Now, so
// installing a frozen clock with xclock.SetDefault makes output deterministic.
func Now() time.Time {
	return xclock.Now()
}
