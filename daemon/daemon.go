// Package daemon wires together Romam's LSDB, neighbor table, SPF
// engine, RIB reconciler, transport, and scheduler into one running
// router process.
package daemon

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/puyanguvic/romam"
	"github.com/puyanguvic/romam/config"
	"github.com/puyanguvic/romam/forwarding"
	"github.com/puyanguvic/romam/lsdb"
	"github.com/puyanguvic/romam/neighbor"
	"github.com/puyanguvic/romam/rib"
	"github.com/puyanguvic/romam/scheduler"
	"github.com/puyanguvic/romam/spf"
	"github.com/puyanguvic/romam/transport"
	"github.com/puyanguvic/romam/wire"
)

// transportPollInterval bounds how long a single ReadFrom call blocks
// before the scheduler's own tickers get a chance to fire, per spec §5.
const transportPollInterval = 100 * time.Millisecond

// lsaRecomputeDebounce mirrors the reference daemon's behavior of
// recomputing SPF and reprogramming the RIB immediately whenever an
// LSA install changes the database, but no more than this often
// otherwise (an unchanged-LSA hello storm must not thrash the kernel
// routing table).
const lsaRecomputeDebounce = 500 * time.Millisecond

// DefaultRouteProtocol tags routes Romam installs into the kernel so
// they can be told apart from routes other processes maintain in the
// same table. Linux's rtnetlink headers also assign this number to
// RTPROT_BGP.
const DefaultRouteProtocol = 186

// multicastConn is the subset of *transport.Conn the daemon depends on,
// so tests can substitute an in-memory fake instead of joining a real
// multicast group.
type multicastConn interface {
	ReadFrom(deadline time.Time) (transport.Received, error)
	WriteTo(b []byte, ifi *net.Interface) error
	Close() error
}

// A Daemon owns every piece of state for one running Romam instance: no
// package-level globals, so more than one Daemon can exist in a single
// process (useful for tests that run two routers back to back).
type Daemon struct {
	cfg config.Config

	lsdb      *lsdb.Database
	neighbors *neighbor.Table
	rib       *rib.Reconciler
	conn      multicastConn
	sched     *scheduler.Scheduler
	selector  *forwarding.Selector

	ifaces []*net.Interface
	ifCost map[int]uint32

	selfSeq uint32

	logger *log.Logger

	lastRecompute time.Time
}

// New resolves cfg's interface names, opens the multicast transport,
// and returns a Daemon ready to Run. installer chooses how computed
// routes are programmed (rib.NewLinuxInstaller or rib.LogInstaller);
// passing nil selects a dry-run rib.LogInstaller.
func New(cfg config.Config, installer rib.ForwardingInstaller, logger *log.Logger) (*Daemon, error) {
	if logger == nil {
		logger = log.Default()
	}
	if installer == nil {
		installer = &rib.LogInstaller{Logger: logger}
	}

	names, err := expandInterfaceNames(cfg.Interfaces)
	if err != nil {
		return nil, err
	}

	ifaces := make([]*net.Interface, 0, len(names))
	ifCost := make(map[int]uint32, len(names))
	for _, name := range names {
		ifi, err := net.InterfaceByName(name)
		if err != nil {
			return nil, err
		}
		ifaces = append(ifaces, ifi)
		cost := uint32(1)
		if c, ok := cfg.InterfaceCost[name]; ok {
			cost = c
		}
		ifCost[ifi.Index] = cost
	}

	conn, err := transport.Listen(cfg.MulticastGroup, cfg.MulticastPort, ifaces)
	if err != nil {
		return nil, err
	}

	return newDaemon(cfg, ifaces, ifCost, conn, installer, logger)
}

// expandInterfaceNames resolves the configured interface name list,
// expanding a literal "auto" entry into every non-loopback interface on
// the host, per spec §6. If enumeration turns up nothing, "lo" is used
// as a last resort, matching the reference daemon's fallback.
func expandInterfaceNames(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if name != "auto" {
			out = append(out, name)
			continue
		}

		ifaces, err := net.Interfaces()
		if err != nil {
			return nil, fmt.Errorf("daemon: enumerate interfaces for auto: %w", err)
		}

		before := len(out)
		for _, ifi := range ifaces {
			if ifi.Flags&net.FlagLoopback != 0 {
				continue
			}
			out = append(out, ifi.Name)
		}
		if len(out) == before {
			out = append(out, "lo")
		}
	}
	return out, nil
}

func newDaemon(cfg config.Config, ifaces []*net.Interface, ifCost map[int]uint32, conn multicastConn, installer rib.ForwardingInstaller, logger *log.Logger) (*Daemon, error) {
	mode, err := forwarding.ParseMode(cfg.RoutingAlgo)
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		cfg:       cfg,
		lsdb:      lsdb.New(),
		neighbors: neighbor.New(cfg.DeadInterval),
		rib:       rib.NewReconciler(installer, cfg.RouteTable),
		conn:      conn,
		ifaces:    ifaces,
		ifCost:    ifCost,
		selfSeq:   1,
		logger:    logger,
	}
	d.lsdb.Logger = logger
	d.rib.Logger = logger

	d.selector = forwarding.NewSelector(mode, int64(routerIDSeed(cfg.RouterID)))

	d.sched = scheduler.New(cfg.HelloInterval, cfg.LSAInterval, cfg.DeadInterval)
	d.sched.Logger = logger
	d.sched.Hooks = scheduler.Hooks{
		SendHello:       d.sendHello,
		Originate:       d.originate,
		ExpireNeighbors: d.neighbors.Expire,
		HandleFrame:     d.handleFrame,
		Shutdown:        d.rib.Withdraw,
	}

	return d, nil
}

// routerIDSeed derives a selector random seed from the router's own
// identity, so two daemons in the same test process don't share one
// process-global random sequence.
func routerIDSeed(id romam.RouterID) uint32 {
	return uint32(id[0])<<24 | uint32(id[1])<<16 | uint32(id[2])<<8 | uint32(id[3])
}

// Run starts the scheduler and the transport receive loop, supervised
// together so that either one's failure or ctx's cancellation stops
// both. It blocks until ctx is canceled or a fatal transport error
// occurs.
func (d *Daemon) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.sched.Run(ctx)
	})

	g.Go(func() error {
		return d.receiveLoop(ctx)
	})

	err := g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

// receiveLoop polls the transport for frames and delivers them to the
// scheduler, which dispatches them on its own goroutine. The poll
// timeout is bounded so ctx cancellation is noticed promptly even
// while no packets are arriving.
func (d *Daemon) receiveLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rx, err := d.conn.ReadFrom(time.Now().Add(transportPollInterval))
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return err
		}

		var sourceIP [4]byte
		if v4 := rx.Source.To4(); v4 != nil {
			copy(sourceIP[:], v4)
		}
		d.sched.Deliver(ctx, rx.Frame, sourceIP, rx.IfIndex)
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

func (d *Daemon) sendHello() {
	hello := wire.Hello{Originator: d.cfg.RouterID}
	b := wire.EncodeHello(hello)
	d.floodBytes(b)
}

// originate rebuilds this router's own LSA from the current neighbor
// table and configured prefixes, installs it into the LSDB, and floods
// it on every interface, per spec §4.3's "neighbor changes trigger
// re-origination."
func (d *Daemon) originate() {
	l := d.selfLSA()
	d.lsdb.Install(l)
	d.floodBytes(wire.EncodeLSA(l))
}

func (d *Daemon) selfLSA() wire.LSA {
	l := wire.LSA{
		Originator: d.cfg.RouterID,
		Seq:        d.selfSeq,
	}
	d.selfSeq++

	for _, n := range d.neighbors.List() {
		cost := d.ifCost[n.IfIndex]
		if cost == 0 {
			cost = 1
		}
		l.Links = append(l.Links, wire.Link{Neighbor: n.RouterID, Cost: cost})
	}

	if d.cfg.Loopback != nil {
		l.Prefixes = append(l.Prefixes, *d.cfg.Loopback)
	}
	l.Prefixes = append(l.Prefixes, d.cfg.AdvertisePrefixes...)

	return l
}

func (d *Daemon) floodBytes(b []byte) {
	for _, ifi := range d.ifaces {
		if err := d.conn.WriteTo(b, ifi); err != nil {
			d.logger.Printf("daemon: flood on %s failed: %v", ifi.Name, err)
		}
	}
}

func (d *Daemon) handleFrame(f wire.Frame, sourceIP [4]byte, ifIndex int) {
	switch m := f.(type) {
	case *wire.Hello:
		d.handleHello(m, sourceIP, ifIndex)
	case *wire.LSA:
		d.handleLSA(m)
	}
}

func (d *Daemon) handleHello(h *wire.Hello, sourceIP [4]byte, ifIndex int) {
	if h.Originator == d.cfg.RouterID {
		return
	}

	event := d.neighbors.OnHello(h.Originator, sourceIP, ifIndex, time.Now())
	if event == neighbor.Up {
		d.logger.Printf("daemon: neighbor up: %s via %v ifindex %d", h.Originator, net.IP(sourceIP[:]), ifIndex)
		d.originate()
		d.recomputeAndProgram(true)
	}
}

func (d *Daemon) handleLSA(l *wire.LSA) {
	if l.Originator == d.cfg.RouterID {
		return
	}

	outcome := d.lsdb.Install(*l)
	if outcome == lsdb.RejectedOlderOrEqual {
		d.recomputeAndProgram(false)
		return
	}

	d.floodBytes(wire.EncodeLSA(*l))
	d.recomputeAndProgram(true)
}

// recomputeAndProgram reruns SPF over the full LSDB and reconciles the
// RIB against it. force bypasses the debounce window, matching the
// reference daemon's "an LSA that actually changed the database always
// triggers an immediate recompute" rule; otherwise a recompute is only
// performed if the debounce interval has elapsed since the last one.
func (d *Daemon) recomputeAndProgram(force bool) {
	now := time.Now()
	if !force && now.Sub(d.lastRecompute) < lsaRecomputeDebounce {
		return
	}
	d.lastRecompute = now

	lsas := d.lsdb.All()
	paths := spf.Compute(d.cfg.RouterID, lsas)
	desired := rib.Desired(paths, lsas, d.neighbors, d.cfg.RouteTable)
	d.rib.Reconcile(desired)
}

// Close releases the transport socket. It does not withdraw installed
// routes; callers that want a clean shutdown should cancel Run's
// context instead, which triggers the scheduler's Shutdown hook.
func (d *Daemon) Close() error {
	return d.conn.Close()
}

// RouterID returns the configured identity of this daemon.
func (d *Daemon) RouterID() romam.RouterID {
	return d.cfg.RouterID
}

// InstalledRoutes returns a snapshot of every route this daemon
// currently believes it has installed.
func (d *Daemon) InstalledRoutes() []rib.RouteEntry {
	return d.rib.Installed()
}

// Selector returns the forwarding-path decision core configured for
// this daemon's routing_algo. The control-plane loop started by Run
// never calls it; it is exposed for a data-plane component running
// alongside Run to consult per packet, per spec §4.8's permitted
// parallel-forwarding-path architecture.
func (d *Daemon) Selector() *forwarding.Selector {
	return d.selector
}
