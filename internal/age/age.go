package age

import "sync/atomic"

// ComputeMinAge computes the minimum acceptable age a cached row must carry
// to satisfy a read or prefetch request for a given slack:
//
//	threshold = slack + (1 if offset else 0)
//	if current <= threshold: return 1
//	else:                    return current - slack - (1 if offset else 0)
func ComputeMinAge(current, slack uint64, offsetSlack bool) uint64 {
	var off uint64
	if offsetSlack {
		off = 1
	}
	threshold := slack + off
	if current <= threshold {
		return 1
	}
	return current - slack - off
}

// Clock is the per-peer monotone age counter advanced by the clock/lifecycle
// operation. It has no cross-peer effect: peers' ages drift apart by design.
type Clock struct {
	v atomic.Uint64
}

// Tick increments the age by one and returns the new value.
func (c *Clock) Tick() uint64 { return c.v.Add(1) }

// Current returns the current age without modifying it.
func (c *Clock) Current() uint64 { return c.v.Load() }

// Initialised reports whether at least one Tick has occurred, the "age > 0"
// precondition the read and prefetch operations require before they will
// run, surfaced as a not-initialised error when it does not hold.
func (c *Clock) Initialised() bool { return c.v.Load() > 0 }
