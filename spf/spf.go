// Package spf computes shortest paths over the link-state database using
// Dijkstra's algorithm. Per Design Notes in spec §9, the working set is
// an index-addressed arena rather than a graph of pointer-linked nodes:
// the arena is built, walked, and dropped wholesale inside Compute.
package spf

import (
	"container/heap"

	"github.com/puyanguvic/romam"
	"github.com/puyanguvic/romam/wire"
)

// A Result is one entry of Compute's output: the first-hop neighbor of
// self on a shortest path to Destination, and the total cost of that
// path.
type Result struct {
	FirstHop romam.RouterID
	Cost     uint32
}

// vertex is one node in the arena built from the LSDB for a single
// Compute call. predecessors holds every arena index that lies on some
// shortest path to this vertex — usually one, more than one when
// multiple equal-cost paths exist (needed for the ECMP view).
type vertex struct {
	id           romam.RouterID
	links        []wire.Link
	dist         uint32
	predecessors []int
	settled      bool
}

// arena addresses vertices by slice index so the working graph has no
// owning pointers between nodes, per Design Notes §9.
type arena struct {
	vertices []vertex
	index    map[romam.RouterID]int
}

func newArena(lsas []wire.LSA) *arena {
	a := &arena{index: make(map[romam.RouterID]int, len(lsas))}

	ensure := func(id romam.RouterID) int {
		if i, ok := a.index[id]; ok {
			return i
		}
		i := len(a.vertices)
		a.vertices = append(a.vertices, vertex{id: id, dist: maxCost})
		a.index[id] = i
		return i
	}

	for _, l := range lsas {
		ensure(l.Originator)
	}
	for _, l := range lsas {
		src := ensure(l.Originator)
		for _, link := range l.Links {
			// Self-links are ignored per spec §4.4.
			if link.Neighbor == l.Originator {
				continue
			}
			// A link may point at a router with no LSA yet; it still
			// forms a graph edge (the target vertex is created with no
			// outgoing edges of its own).
			ensure(link.Neighbor)
			a.vertices[src].links = append(a.vertices[src].links, link)
		}
	}

	return a
}

const maxCost = ^uint32(0)

// queueItem is one entry of the Dijkstra priority queue.
type queueItem struct {
	vertexIdx int
	dist      uint32
}

type priorityQueue []queueItem

func (q priorityQueue) Len() int            { return len(q) }
func (q priorityQueue) Less(i, j int) bool  { return q[i].dist < q[j].dist }
func (q priorityQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *priorityQueue) Push(x interface{}) { *q = append(*q, x.(queueItem)) }
func (q *priorityQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Compute runs Dijkstra's algorithm rooted at self over the graph
// implied by lsas, and returns, for each reachable non-self destination,
// a single first-hop neighbor of self and the total path cost (the
// first one settled, per spec §4.4's default single-path tie-break). A
// destination is omitted if no predecessor chain from it resolves to a
// direct neighbor of self — the LSDB may be transiently asymmetric.
func Compute(self romam.RouterID, lsas []wire.LSA) map[romam.RouterID]Result {
	all := computeAll(self, lsas)
	out := make(map[romam.RouterID]Result, len(all))
	for id, candidates := range all {
		out[id] = candidates[0]
	}
	return out
}

// ComputeAllPaths is the ECMP-aware counterpart to Compute: for each
// reachable destination it returns every first hop that lies on some
// path of minimum cost, per spec §4.4's "all equal-cost candidates"
// view used by the ECMP selector mode in package forwarding.
func ComputeAllPaths(self romam.RouterID, lsas []wire.LSA) map[romam.RouterID][]Result {
	return computeAll(self, lsas)
}

func computeAll(self romam.RouterID, lsas []wire.LSA) map[romam.RouterID][]Result {
	a := newArena(lsas)

	srcIdx, ok := a.index[self]
	if !ok {
		return map[romam.RouterID][]Result{}
	}
	a.vertices[srcIdx].dist = 0

	pq := &priorityQueue{{vertexIdx: srcIdx, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		item := heap.Pop(pq).(queueItem)
		u := item.vertexIdx
		if a.vertices[u].settled {
			continue
		}
		a.vertices[u].settled = true

		for _, link := range a.vertices[u].links {
			vIdx := a.index[link.Neighbor]
			if a.vertices[vIdx].settled {
				continue
			}

			newDist := addCost(a.vertices[u].dist, link.Cost)
			switch {
			case newDist < a.vertices[vIdx].dist:
				a.vertices[vIdx].dist = newDist
				a.vertices[vIdx].predecessors = []int{u}
				heap.Push(pq, queueItem{vertexIdx: vIdx, dist: newDist})
			case newDist == a.vertices[vIdx].dist:
				// An additional shortest path to vIdx through u: record it
				// for the ECMP view without re-relaxing the distance.
				a.vertices[vIdx].predecessors = append(a.vertices[vIdx].predecessors, u)
			}
		}
	}

	memo := make(map[int][]romam.RouterID, len(a.vertices))
	out := make(map[romam.RouterID][]Result, len(a.vertices))
	for i := range a.vertices {
		v := &a.vertices[i]
		if i == srcIdx || !v.settled || v.dist == maxCost {
			continue
		}

		hops := firstHopsOf(a, i, srcIdx, memo)
		if len(hops) == 0 {
			continue
		}

		results := make([]Result, 0, len(hops))
		for _, h := range hops {
			results = append(results, Result{FirstHop: h, Cost: v.dist})
		}
		out[v.id] = results
	}
	return out
}

// firstHopsOf returns the set of distinct RouterIDs adjacent to srcIdx
// that lie on some shortest path from srcIdx to vertex i, found by
// walking every predecessor branch back toward the source. Results are
// memoized since the predecessor relation forms a DAG oriented toward
// the source (no cycles, so plain recursion always terminates).
func firstHopsOf(a *arena, i, srcIdx int, memo map[int][]romam.RouterID) []romam.RouterID {
	if hops, ok := memo[i]; ok {
		return hops
	}

	seen := make(map[romam.RouterID]bool)
	var hops []romam.RouterID
	for _, pred := range a.vertices[i].predecessors {
		if pred == srcIdx {
			if id := a.vertices[i].id; !seen[id] {
				seen[id] = true
				hops = append(hops, id)
			}
			continue
		}
		for _, h := range firstHopsOf(a, pred, srcIdx, memo) {
			if !seen[h] {
				seen[h] = true
				hops = append(hops, h)
			}
		}
	}

	memo[i] = hops
	return hops
}

func addCost(a, b uint32) uint32 {
	sum := a + b
	if sum < a {
		// Overflow: clamp so it can never look shorter than any real path.
		return maxCost
	}
	return sum
}
