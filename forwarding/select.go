package forwarding

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/puyanguvic/romam"
)

// Mode selects which policy Select uses to choose among feasible
// candidates in step 4 of the algorithm.
type Mode int

// Possible selector modes.
const (
	ModeShortest Mode = iota
	ModeKShort
	ModeECMP
	ModeBudgetAware
	ModeBandit
)

// ErrNoRoute is returned by Select when no candidate survives
// filtering, per spec §4.8.2 step 6.
var ErrNoRoute = errors.New("forwarding: no feasible route")

// ErrUnknownMode is returned by ParseMode for any string outside its
// known set.
var ErrUnknownMode = errors.New("forwarding: unknown routing_algo")

// ParseMode maps a configuration file's routing_algo value onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "shortest":
		return ModeShortest, nil
	case "kshort":
		return ModeKShort, nil
	case "ecmp":
		return ModeECMP, nil
	case "budget_aware":
		return ModeBudgetAware, nil
	case "bandit":
		return ModeBandit, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// A Candidate is one next-hop entry under consideration for a
// destination.
type Candidate struct {
	IfIndex            int
	IfaceUp            bool
	CostFromHereToDest uint32

	// NextIface is the resolved egress interface on the adjacent
	// router, if known. HasNextIface reports whether it is known; when
	// it is false, step 3's one-hop congestion filter is skipped for
	// this candidate.
	NextIface    int
	HasNextIface bool

	// Lane is this candidate's own egress queue, consulted for local
	// congestion in step 2.
	Lane *Queue

	// RemoteCongested reports one-hop telemetry for NextIface, if the
	// daemon has observed queue-depth telemetry for that remote lane.
	// Callers that have no such telemetry should always pass false.
	RemoteCongested bool
}

// A Selector chooses a next hop from a set of Candidates for each
// forwarded packet, mutating its Tags per spec §4.8.2 step 5.
type Selector struct {
	Mode Mode

	// Rand drives ECMP and bandit sampling; it must be set explicitly
	// by callers that need deterministic output (e.g. tests). A nil
	// Rand is replaced on first use with this Selector's own source
	// seeded with 1.
	Rand *rand.Rand

	Arms *ArmStore

	now func() time.Time
}

// NewSelector returns a Selector in mode, with its own seeded random
// source.
func NewSelector(mode Mode, seed int64) *Selector {
	return &Selector{
		Mode: mode,
		Rand: rand.New(rand.NewSource(seed)),
		Arms: NewArmStore(),
	}
}

func (s *Selector) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// Select runs the six-step per-hop selection algorithm of spec §4.8.2
// and returns the chosen candidate's egress interface index, along
// with the updated Tags to carry forward. dest identifies the
// destination, used to key bandit arm lookups. pSelected is the
// selection probability used for ModeBandit (1 for every other mode);
// callers that want one-hop feedback applied later (spec §4.8.5) must
// keep it alongside this packet's distance until feedback arrives.
func (s *Selector) Select(dest romam.RouterID, tags Tags, candidates []Candidate) (ifIndex int, next Tags, pSelected float64, err error) {
	now := s.clock()

	// Step 1: filter by feasibility (budget and interface up/down).
	survivors := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.IfaceUp {
			continue
		}
		if !tags.unlimitedBudget() {
			remaining := tags.RemainingBudget(now)
			if remaining <= 0 {
				continue
			}
			if uint32(remaining.Microseconds()) < c.CostFromHereToDest {
				continue
			}
		}
		survivors = append(survivors, c)
	}
	if len(survivors) == 0 {
		return 0, tags, 0, ErrNoRoute
	}

	// Step 2: filter by local congestion, unless it would empty the set.
	survivors = filterUnlessEmpty(survivors, func(c Candidate) bool {
		return c.Lane == nil || c.Lane.PriorityOccupancy() < congestionThreshold
	})

	// Step 3: filter by one-hop congestion when known, unless it would
	// empty the set.
	survivors = filterUnlessEmpty(survivors, func(c Candidate) bool {
		return !c.HasNextIface || !c.RemoteCongested
	})

	// Step 4: choose among survivors.
	chosen, pSelected, err := s.choose(dest, survivors)
	if err != nil {
		return 0, tags, 0, err
	}

	// Step 5: update tags.
	next = tags
	if chosen.CostFromHereToDest > next.Distance {
		next.Distance = chosen.CostFromHereToDest
	}
	if !tags.unlimitedBudget() {
		remaining := tags.RemainingBudget(now) - time.Duration(chosen.CostFromHereToDest)*time.Microsecond
		if remaining <= priorityPromotionThreshold {
			next.Priority = true
		}
	}

	return chosen.IfIndex, next, pSelected, nil
}

func filterUnlessEmpty(in []Candidate, keep func(Candidate) bool) []Candidate {
	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		if keep(c) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return in
	}
	return out
}

// choose implements step 4 for each Mode, returning the chosen
// candidate and (for ModeBandit) the selection probability used.
func (s *Selector) choose(dest romam.RouterID, survivors []Candidate) (Candidate, float64, error) {
	if len(survivors) == 1 {
		return survivors[0], 1, nil
	}

	switch s.Mode {
	case ModeECMP:
		return survivors[s.rng().Intn(len(survivors))], 1, nil

	case ModeBandit:
		ifIndexes := make([]int, len(survivors))
		byIface := make(map[int]Candidate, len(survivors))
		for i, c := range survivors {
			ifIndexes[i] = c.IfIndex
			byIface[c.IfIndex] = c
		}
		chosenIface, pSelected := s.Arms.BanditSelect(s.rng(), dest, ifIndexes)
		return byIface[chosenIface], pSelected, nil

	default: // ModeShortest, ModeKShort, ModeBudgetAware: minimum cost, tie-break lower ifindex.
		best := survivors[0]
		for _, c := range survivors[1:] {
			if c.CostFromHereToDest < best.CostFromHereToDest ||
				(c.CostFromHereToDest == best.CostFromHereToDest && c.IfIndex < best.IfIndex) {
				best = c
			}
		}
		return best, 1, nil
	}
}

func (s *Selector) rng() *rand.Rand {
	if s.Rand == nil {
		s.Rand = rand.New(rand.NewSource(1))
	}
	return s.Rand
}
