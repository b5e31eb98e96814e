package forwarding

import (
	"time"

	"github.com/puyanguvic/romam"
)

// A Feedback is the small unicast acknowledgement a downstream router
// emits back to the upstream router's ingress interface after
// forwarding a packet, per spec §4.8.5.
type Feedback struct {
	Destination romam.RouterID
	QueueDelay  time.Duration
}

// QueueDelay returns q's locally-measured queue delay: its current
// byte occupancy (both lanes) divided by the configured service rate
// in bytes per second.
func (q *Queue) QueueDelay(serviceRateBytesPerSecond float64) time.Duration {
	priority, bestEffort := q.Bytes()
	if serviceRateBytesPerSecond <= 0 {
		return 0
	}
	seconds := float64(priority+bestEffort) / serviceRateBytesPerSecond
	return time.Duration(seconds * float64(time.Second))
}

// ApplyFeedback applies one-hop feedback to the arm the upstream
// router pulled for (fb.Destination, ifIndex), using distance and
// pSelected recorded at selection time for the packet this
// acknowledgement corresponds to. distance is in microseconds, the unit
// Select uses for costs, and is converted to seconds to match the queue
// delay.
func (s *Selector) ApplyFeedback(ifIndex int, fb Feedback, distance uint32, pSelected float64) {
	if s.Arms == nil {
		return
	}
	distanceSeconds := (time.Duration(distance) * time.Microsecond).Seconds()
	s.Arms.Update(fb.Destination, ifIndex, distanceSeconds, fb.QueueDelay.Seconds(), pSelected)
}
