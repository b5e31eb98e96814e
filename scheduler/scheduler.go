// Package scheduler drives Romam's periodic duties: hello emission, LSA
// origination, neighbor expiry, and inbound frame dispatch, all on a
// single cooperative loop.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/puyanguvic/romam"
	"github.com/puyanguvic/romam/wire"
)

// Hooks are the callbacks the Scheduler invokes at each event. All of
// them run on the scheduler's own goroutine; none may block for long.
type Hooks struct {
	// SendHello is called on every HelloInterval tick.
	SendHello func()

	// Originate is called once at startup and again on every
	// LSAInterval tick, and whenever ExpireNeighbors reports evicted
	// neighbors, so this router's links are re-advertised.
	Originate func()

	// ExpireNeighbors is called on every ExpireInterval tick and must
	// return the set of neighbors it evicted, if any, so the Scheduler
	// can decide whether to re-originate.
	ExpireNeighbors func(now time.Time) (down []romam.RouterID)

	// HandleFrame is called for every frame the transport produces, as
	// delivered through Deliver.
	HandleFrame func(f wire.Frame, sourceIP [4]byte, ifIndex int)

	// Shutdown is called once, after ctx is canceled and before Run
	// returns, so the caller can attempt a best-effort route withdrawal
	// per spec §5.
	Shutdown func()
}

// A Scheduler owns the interval timers described in spec §4.6 and the
// single-threaded loop that fires them, reimplementing the reference
// daemon's stop-flag poll loop as a Go select over channels.
type Scheduler struct {
	HelloInterval  time.Duration
	LSAInterval    time.Duration
	ExpireInterval time.Duration

	Hooks Hooks

	// Logger receives neighbor-down notices. Defaults to
	// log.Default() when nil.
	Logger *log.Logger

	frames chan frameEvent
}

type frameEvent struct {
	frame    wire.Frame
	sourceIP [4]byte
	ifIndex  int
}

// New returns a Scheduler ready to Run once its Hooks are set.
func New(helloInterval, lsaInterval, expireInterval time.Duration) *Scheduler {
	return &Scheduler{
		HelloInterval:  helloInterval,
		LSAInterval:    lsaInterval,
		ExpireInterval: expireInterval,
		frames:         make(chan frameEvent, 256),
	}
}

func (s *Scheduler) logger() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.Default()
}

// Deliver enqueues a frame received off the wire for dispatch on the
// scheduler's own goroutine. It blocks if the internal queue is full,
// exerting backpressure on the receiver rather than dropping silently.
func (s *Scheduler) Deliver(ctx context.Context, f wire.Frame, sourceIP [4]byte, ifIndex int) {
	select {
	case s.frames <- frameEvent{frame: f, sourceIP: sourceIP, ifIndex: ifIndex}:
	case <-ctx.Done():
	}
}

// Run originates this router's first LSA, then drives the hello, LSA,
// and neighbor-expiry timers and inbound-frame dispatch until ctx is
// canceled. It returns ctx.Err() on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.Hooks.Originate != nil {
		s.Hooks.Originate()
	}

	helloTicker := time.NewTicker(s.HelloInterval)
	defer helloTicker.Stop()
	lsaTicker := time.NewTicker(s.LSAInterval)
	defer lsaTicker.Stop()
	expireTicker := time.NewTicker(s.ExpireInterval)
	defer expireTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.Hooks.Shutdown != nil {
				s.Hooks.Shutdown()
			}
			return ctx.Err()

		case <-helloTicker.C:
			if s.Hooks.SendHello != nil {
				s.Hooks.SendHello()
			}

		case <-lsaTicker.C:
			if s.Hooks.Originate != nil {
				s.Hooks.Originate()
			}

		case now := <-expireTicker.C:
			if s.Hooks.ExpireNeighbors == nil {
				continue
			}
			down := s.Hooks.ExpireNeighbors(now)
			for _, id := range down {
				s.logger().Printf("scheduler: neighbor down: %s", id)
			}
			if len(down) > 0 && s.Hooks.Originate != nil {
				s.Hooks.Originate()
			}

		case ev := <-s.frames:
			if s.Hooks.HandleFrame != nil {
				s.Hooks.HandleFrame(ev.frame, ev.sourceIP, ev.ifIndex)
			}
		}
	}
}
