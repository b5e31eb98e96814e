package forwarding

import "sync"

// Lane capacity defaults, in bytes, per spec §4.8.3.
const (
	DefaultPriorityLaneBytes   = 250_000
	DefaultBestEffortLaneBytes = 2_500_000
)

// A Queue is one egress interface's two-lane queueing discipline:
// priority packets are strictly dequeued ahead of best-effort ones.
type Queue struct {
	mu sync.Mutex

	priorityCap   int
	bestEffortCap int

	priority   []int // queued item sizes, FIFO
	bestEffort []int

	priorityBytes   int
	bestEffortBytes int

	EnqueueDrops uint64
}

// NewQueue returns a Queue with the given lane byte capacities.
func NewQueue(priorityCap, bestEffortCap int) *Queue {
	return &Queue{priorityCap: priorityCap, bestEffortCap: bestEffortCap}
}

// Enqueue admits a packet of size bytes into the priority lane if
// priority is set, otherwise the best-effort lane. If the chosen
// lane's capacity would be exceeded, the packet is tail-dropped and
// EnqueueDrops is incremented.
func (q *Queue) Enqueue(size int, priority bool) (dropped bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if priority {
		if q.priorityBytes+size > q.priorityCap {
			q.EnqueueDrops++
			return true
		}
		q.priority = append(q.priority, size)
		q.priorityBytes += size
		return false
	}

	if q.bestEffortBytes+size > q.bestEffortCap {
		q.EnqueueDrops++
		return true
	}
	q.bestEffort = append(q.bestEffort, size)
	q.bestEffortBytes += size
	return false
}

// Dequeue removes and returns the size of the next packet, preferring
// the priority lane whenever it is non-empty. ok is false if both
// lanes are empty.
func (q *Queue) Dequeue() (size int, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.priority) > 0 {
		size = q.priority[0]
		q.priority = q.priority[1:]
		q.priorityBytes -= size
		return size, true
	}
	if len(q.bestEffort) > 0 {
		size = q.bestEffort[0]
		q.bestEffort = q.bestEffort[1:]
		q.bestEffortBytes -= size
		return size, true
	}
	return 0, false
}

// PriorityOccupancy returns the priority lane's current byte count
// divided by its capacity, for use in congestion filtering.
func (q *Queue) PriorityOccupancy() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return float64(q.priorityBytes) / float64(q.priorityCap)
}

// Bytes returns the current byte occupancy of the priority and
// best-effort lanes, for telemetry advertised to neighbors.
func (q *Queue) Bytes() (priority, bestEffort int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.priorityBytes, q.bestEffortBytes
}
