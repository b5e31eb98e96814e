package forwarding

import (
	"math"
	"math/rand"
	"sync"

	"github.com/puyanguvic/romam"
)

// An Arm tracks the bandit statistics for one (destination,
// egress-interface) pair, per spec §4.8.4.
type Arm struct {
	Pulls          uint64
	CumulativeLoss float64
}

// pull records a selection of this arm.
func (a *Arm) pull() {
	a.Pulls++
}

// update applies one-hop feedback to this arm's cumulative loss.
// distance and delay are both in the same time unit (seconds, as
// produced by time.Duration.Seconds()); pSelected is the selection
// probability computed for this arm at pull time.
//
// This is the formula given verbatim: no pulls-denominator
// normalization beyond what is written here, even though a textbook
// EXP3 update additionally divides by the number of candidate arms.
func (a *Arm) update(distance, delay, pSelected float64) {
	if pSelected <= 0 {
		return
	}
	a.CumulativeLoss += (1 - math.Exp(-(distance + delay))) / pSelected
}

// An ArmStore holds every Arm, keyed by destination then egress
// interface index, with updates serialized per spec §5 ("if the
// forwarding path and callback can race, per-arm updates must be
// serialized").
type ArmStore struct {
	mu   sync.Mutex
	arms map[romam.RouterID]map[int]*Arm
}

// NewArmStore returns an empty ArmStore.
func NewArmStore() *ArmStore {
	return &ArmStore{arms: make(map[romam.RouterID]map[int]*Arm)}
}

func (s *ArmStore) arm(dest romam.RouterID, ifIndex int) *Arm {
	byIface, ok := s.arms[dest]
	if !ok {
		byIface = make(map[int]*Arm)
		s.arms[dest] = byIface
	}
	a, ok := byIface[ifIndex]
	if !ok {
		a = &Arm{}
		byIface[ifIndex] = a
	}
	return a
}

// Pull records a selection of the (dest, ifIndex) arm.
func (s *ArmStore) Pull(dest romam.RouterID, ifIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arm(dest, ifIndex).pull()
}

// Update applies one-hop feedback to the (dest, ifIndex) arm.
func (s *ArmStore) Update(dest romam.RouterID, ifIndex int, distance, delay, pSelected float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arm(dest, ifIndex).update(distance, delay, pSelected)
}

// Snapshot returns a copy of the (dest, ifIndex) arm's current state.
func (s *ArmStore) Snapshot(dest romam.RouterID, ifIndex int) Arm {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.arm(dest, ifIndex)
}

// BanditSelect chooses one of ifIndexes for dest using the EXP3-style
// weighting of spec §4.8.4: each arm's weight is exp(-eta*loss) with
// eta = sqrt(n*ln(n)/pulls); weights are normalized to a distribution
// and sampled with rng. An arm with zero pulls is bootstrapped with
// uniform probability on its first visit. The chosen index's arm has
// Pull recorded before return, and the selection probability used is
// returned for later Update calls.
func (s *ArmStore) BanditSelect(rng *rand.Rand, dest romam.RouterID, ifIndexes []int) (chosen int, pSelected float64) {
	n := len(ifIndexes)
	if n == 1 {
		s.Pull(dest, ifIndexes[0])
		return ifIndexes[0], 1
	}

	s.mu.Lock()
	weights := make([]float64, n)
	lnN := math.Log(float64(n))
	for i, ifIndex := range ifIndexes {
		a := s.arm(dest, ifIndex)
		if a.Pulls == 0 {
			weights[i] = 1
			continue
		}
		eta := math.Sqrt(float64(n) * lnN / float64(a.Pulls))
		weights[i] = math.Exp(-eta * a.CumulativeLoss)
	}
	s.mu.Unlock()

	var total float64
	for _, w := range weights {
		total += w
	}

	r := rng.Float64() * total
	var cum float64
	idx := n - 1
	for i, w := range weights {
		cum += w
		if r < cum {
			idx = i
			break
		}
	}

	chosen = ifIndexes[idx]
	pSelected = weights[idx] / total
	s.Pull(dest, chosen)
	return chosen, pSelected
}
