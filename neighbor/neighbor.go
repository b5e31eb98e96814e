// Package neighbor tracks per-remote-router liveness as deduced from
// received hello frames, keyed by RouterID so that a router with
// multiple interfaces toward us is still a single neighbor.
package neighbor

import (
	"sync"
	"time"

	"github.com/puyanguvic/romam"
)

// A Neighbor is one adjacency as currently known to this router.
type Neighbor struct {
	RouterID romam.RouterID
	IP       [4]byte
	IfIndex  int
	LastSeen time.Time
}

// Event describes what on_hello caused to happen.
type Event int

// Possible on_hello outcomes.
const (
	Refresh Event = iota
	Up
)

// A Table holds the set of currently-live neighbors. The zero value is
// ready to use.
type Table struct {
	mu        sync.RWMutex
	neighbors map[romam.RouterID]Neighbor

	// DeadInterval is the staleness threshold used by Expire. Defaults
	// to 0 (everything immediately expires) if never set by the caller;
	// daemon wiring always sets this from configuration.
	DeadInterval time.Duration
}

// New returns an empty Table using deadInterval as the eviction
// threshold.
func New(deadInterval time.Duration) *Table {
	return &Table{
		neighbors:    make(map[romam.RouterID]Neighbor),
		DeadInterval: deadInterval,
	}
}

// OnHello records a hello received from routerID at now, arriving on
// ifIndex from sourceIP. It reports Up if this is the first time the
// neighbor has been seen (or it had previously expired), or Refresh if
// the neighbor was already live.
//
// last_seen only ever increases for a given neighbor: a hello with an
// earlier timestamp than the currently recorded one updates the address
// and interface but keeps the later LastSeen.
func (t *Table) OnHello(routerID romam.RouterID, sourceIP [4]byte, ifIndex int, now time.Time) Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.neighbors == nil {
		t.neighbors = make(map[romam.RouterID]Neighbor)
	}

	old, existed := t.neighbors[routerID]
	lastSeen := now
	if existed && now.Before(old.LastSeen) {
		lastSeen = old.LastSeen
	}
	t.neighbors[routerID] = Neighbor{
		RouterID: routerID,
		IP:       sourceIP,
		IfIndex:  ifIndex,
		LastSeen: lastSeen,
	}

	if existed {
		return Refresh
	}
	return Up
}

// Expire removes every neighbor whose now - LastSeen exceeds
// DeadInterval, returning the RouterIDs removed.
func (t *Table) Expire(now time.Time) []romam.RouterID {
	t.mu.Lock()
	defer t.mu.Unlock()

	var down []romam.RouterID
	for id, n := range t.neighbors {
		if now.Sub(n.LastSeen) > t.DeadInterval {
			delete(t.neighbors, id)
			down = append(down, id)
		}
	}
	return down
}

// Get returns the current record for routerID, if it is live.
func (t *Table) Get(routerID romam.RouterID) (Neighbor, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n, ok := t.neighbors[routerID]
	return n, ok
}

// List returns every currently-live neighbor, in unspecified order.
func (t *Table) List() []Neighbor {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Neighbor, 0, len(t.neighbors))
	for _, n := range t.neighbors {
		out = append(out, n)
	}
	return out
}

// Len reports the number of currently-live neighbors.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.neighbors)
}
