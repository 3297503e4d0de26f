// Package decay holds the time-based models: entropy, temporal gap
// classification, and the per-session narrative arc. All of them take time
// from an injected Clock so the math is deterministic under test; there is no
// background ticking process; decay is computed lazily from elapsed
// wall-clock time at read time.
package decay

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock returns a fixed instant. Test helper.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }
