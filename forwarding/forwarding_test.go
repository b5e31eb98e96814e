package forwarding

import (
	"math/rand"
	"testing"
	"time"

	"github.com/puyanguvic/romam"
)

func TestQueueTailDrop(t *testing.T) {
	q := NewQueue(10, 10)

	if dropped := q.Enqueue(6, true); dropped {
		t.Fatal("first enqueue dropped unexpectedly")
	}
	if dropped := q.Enqueue(6, true); !dropped {
		t.Fatal("second enqueue should have been tail-dropped")
	}
	if q.EnqueueDrops != 1 {
		t.Fatalf("EnqueueDrops = %d, want 1", q.EnqueueDrops)
	}
}

func TestQueuePriorityFirst(t *testing.T) {
	q := NewQueue(1000, 1000)
	q.Enqueue(5, false) // best-effort first
	q.Enqueue(7, true)  // then priority

	size, ok := q.Dequeue()
	if !ok || size != 7 {
		t.Fatalf("Dequeue = (%d,%v), want priority item (7,true) first", size, ok)
	}
	size, ok = q.Dequeue()
	if !ok || size != 5 {
		t.Fatalf("Dequeue = (%d,%v), want best-effort item (5,true) second", size, ok)
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatal("Dequeue on empty queue returned ok=true")
	}
}

func destID() romam.RouterID { return romam.RouterID{10, 0, 0, 9} }

func TestSelectShortestPicksMinCostTieBreakByIfIndex(t *testing.T) {
	s := NewSelector(ModeShortest, 1)
	candidates := []Candidate{
		{IfIndex: 2, IfaceUp: true, CostFromHereToDest: 5},
		{IfIndex: 1, IfaceUp: true, CostFromHereToDest: 5},
		{IfIndex: 3, IfaceUp: true, CostFromHereToDest: 9},
	}

	ifIndex, _, _, err := s.Select(destID(), Tags{}, candidates)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if ifIndex != 1 {
		t.Fatalf("Select = %d, want 1 (lower ifindex on tie)", ifIndex)
	}
}

func TestSelectExcludesDownInterfaces(t *testing.T) {
	s := NewSelector(ModeShortest, 1)
	candidates := []Candidate{
		{IfIndex: 1, IfaceUp: false, CostFromHereToDest: 1},
		{IfIndex: 2, IfaceUp: true, CostFromHereToDest: 5},
	}

	ifIndex, _, _, err := s.Select(destID(), Tags{}, candidates)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if ifIndex != 2 {
		t.Fatalf("Select = %d, want 2 (only up interface)", ifIndex)
	}
}

func TestSelectNoRouteWhenAllDown(t *testing.T) {
	s := NewSelector(ModeShortest, 1)
	candidates := []Candidate{{IfIndex: 1, IfaceUp: false, CostFromHereToDest: 1}}

	_, _, _, err := s.Select(destID(), Tags{}, candidates)
	if err != ErrNoRoute {
		t.Fatalf("Select err = %v, want ErrNoRoute", err)
	}
}

func TestSelectFiltersCongestedLaneUnlessEmpty(t *testing.T) {
	s := NewSelector(ModeShortest, 1)

	congested := NewQueue(100, 1000)
	congested.Enqueue(80, true) // 0.8 occupancy, over threshold

	clear := NewQueue(100, 1000)

	candidates := []Candidate{
		{IfIndex: 1, IfaceUp: true, CostFromHereToDest: 10, Lane: congested},
		{IfIndex: 2, IfaceUp: true, CostFromHereToDest: 20, Lane: clear},
	}

	ifIndex, _, _, err := s.Select(destID(), Tags{}, candidates)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if ifIndex != 2 {
		t.Fatalf("Select = %d, want 2 (congested candidate filtered)", ifIndex)
	}
}

func TestSelectKeepsCongestedCandidateWhenOnlyOption(t *testing.T) {
	s := NewSelector(ModeShortest, 1)

	congested := NewQueue(100, 1000)
	congested.Enqueue(90, true)

	candidates := []Candidate{
		{IfIndex: 1, IfaceUp: true, CostFromHereToDest: 10, Lane: congested},
	}

	ifIndex, _, _, err := s.Select(destID(), Tags{}, candidates)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if ifIndex != 1 {
		t.Fatalf("Select = %d, want 1 (sole congested candidate kept)", ifIndex)
	}
}

func TestSelectExcludesOverBudget(t *testing.T) {
	s := NewSelector(ModeShortest, 1)
	now := time.Now()
	s.now = func() time.Time { return now }

	tags := Tags{OriginationTimestamp: now, Budget: 50 * time.Microsecond}
	candidates := []Candidate{
		{IfIndex: 1, IfaceUp: true, CostFromHereToDest: 100}, // exceeds budget
		{IfIndex: 2, IfaceUp: true, CostFromHereToDest: 10},
	}

	ifIndex, _, _, err := s.Select(destID(), tags, candidates)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if ifIndex != 2 {
		t.Fatalf("Select = %d, want 2 (only feasible within budget)", ifIndex)
	}
}

func TestSelectPromotesPriorityNearDeadline(t *testing.T) {
	s := NewSelector(ModeShortest, 1)
	now := time.Now()
	s.now = func() time.Time { return now }

	tags := Tags{OriginationTimestamp: now, Budget: 30 * time.Microsecond}
	candidates := []Candidate{{IfIndex: 1, IfaceUp: true, CostFromHereToDest: 15}}

	_, next, _, err := s.Select(destID(), tags, candidates)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !next.Priority {
		t.Fatal("Priority not promoted despite remaining budget under threshold")
	}
}

func TestSelectECMPIsDeterministicForFixedSeed(t *testing.T) {
	candidates := []Candidate{
		{IfIndex: 1, IfaceUp: true, CostFromHereToDest: 5},
		{IfIndex: 2, IfaceUp: true, CostFromHereToDest: 5},
		{IfIndex: 3, IfaceUp: true, CostFromHereToDest: 5},
	}

	s1 := NewSelector(ModeECMP, 42)
	s2 := NewSelector(ModeECMP, 42)

	for i := 0; i < 5; i++ {
		a, _, _, err := s1.Select(destID(), Tags{}, candidates)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		b, _, _, err := s2.Select(destID(), Tags{}, candidates)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if a != b {
			t.Fatalf("ECMP selection diverged on iteration %d: %d vs %d", i, a, b)
		}
	}
}

func TestBanditSelectBootstrapsUniformOnFirstVisit(t *testing.T) {
	store := NewArmStore()
	rng := rand.New(rand.NewSource(7))

	chosen, pSelected := store.BanditSelect(rng, destID(), []int{1, 2})
	if chosen != 1 && chosen != 2 {
		t.Fatalf("BanditSelect returned %d, want 1 or 2", chosen)
	}
	if pSelected != 0.5 {
		t.Fatalf("pSelected = %f, want 0.5 for two untouched arms", pSelected)
	}
}

func TestBanditPrefersLowerLossArm(t *testing.T) {
	store := NewArmStore()
	// Arm 2 accrues heavy loss; arm 1 stays clean.
	for i := 0; i < 50; i++ {
		store.Update(destID(), 1, 1, 0, 1)
		store.Update(destID(), 2, 1, 0, 1)
	}
	store.Update(destID(), 2, 50, 0, 1)

	rng := rand.New(rand.NewSource(1))
	counts := map[int]int{}
	for i := 0; i < 200; i++ {
		chosen, _ := store.BanditSelect(rng, destID(), []int{1, 2})
		counts[chosen]++
	}

	if counts[1] <= counts[2] {
		t.Fatalf("expected arm 1 (lower loss) to be favored, got counts=%v", counts)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"shortest", ModeShortest},
		{"kshort", ModeKShort},
		{"ecmp", ModeECMP},
		{"budget_aware", ModeBudgetAware},
		{"bandit", ModeBandit},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if err != nil {
			t.Fatalf("ParseMode(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseModeRejectsUnknown(t *testing.T) {
	if _, err := ParseMode("quantum"); err == nil {
		t.Fatal("ParseMode(quantum) succeeded, want error")
	}
}
