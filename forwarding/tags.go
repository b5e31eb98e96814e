// Package forwarding implements Romam's per-packet forwarding-path
// decision core: the DGR/DDR next-hop selector, the two-lane queueing
// discipline, and the bandit-style per-arm value tracker used by the
// Octopus selector variant.
package forwarding

import "time"

// Tags are the per-packet fields the decision core inspects and
// updates at every hop, per spec §4.8.1.
type Tags struct {
	// OriginationTimestamp is when the packet was first emitted.
	OriginationTimestamp time.Time

	// Budget is a deadline expressed relative to OriginationTimestamp.
	// Zero means unlimited: deadline-aware selection is disabled for
	// this packet.
	Budget time.Duration

	// Distance is the accumulated lower-bound cost along the path
	// actually taken so far.
	Distance uint32

	// Priority is a hint set at origin or by an upstream hop, meaning
	// this packet may be placed in the priority lane.
	Priority bool
}

// unlimitedBudget reports whether t carries no deadline.
func (t Tags) unlimitedBudget() bool {
	return t.Budget == 0
}

// RemainingBudget returns the time left before t's deadline, measured
// from now. The result is meaningless (and must not be consulted) when
// t.unlimitedBudget() is true.
func (t Tags) RemainingBudget(now time.Time) time.Duration {
	deadline := t.OriginationTimestamp.Add(t.Budget)
	return deadline.Sub(now)
}

// priorityPromotionThreshold is the remaining-budget cutoff at or below which
// a packet is promoted into the priority lane for its remaining hops,
// per spec §4.8.2 step 5.
const priorityPromotionThreshold = 20 * time.Microsecond

// congestionThreshold is the lane-occupancy fraction at or above which
// a candidate is treated as congested, per spec §4.8.2 steps 2 and 3.
const congestionThreshold = 0.75
