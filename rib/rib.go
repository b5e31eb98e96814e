// Package rib computes the desired forwarding state from SPF results
// and advertised prefixes, and reconciles it against a pluggable
// ForwardingInstaller.
package rib

import (
	"log"
	"net/netip"
	"sync"

	"github.com/gaissmai/bart"

	"github.com/puyanguvic/romam"
	"github.com/puyanguvic/romam/neighbor"
	"github.com/puyanguvic/romam/spf"
	"github.com/puyanguvic/romam/wire"
)

// A RouteEntry is one desired forwarding table entry.
type RouteEntry struct {
	Dst     romam.Prefix
	Gateway [4]byte
	IfIndex int
	Metric  uint32
	Table   int
}

func (r RouteEntry) key() netip.Prefix {
	return netip.PrefixFrom(netip.AddrFrom4(r.Dst.Network), int(r.Dst.PrefixLen))
}

// A ForwardingInstaller programs RouteEntry values into a host
// forwarding table. Implementations must treat Replace as idempotent:
// calling it twice with the same RouteEntry leaves the table in the
// same state as calling it once.
type ForwardingInstaller interface {
	Replace(RouteEntry) error
	Delete(RouteEntry) error
}

// BaseMetric is added to a route's SPF cost to form its installed
// metric, per spec §4.5 algorithm step 1.
const BaseMetric = 1

// A Reconciler owns the last-installed snapshot and drives an installer
// to bring it in line with each desired set passed to Reconcile.
type Reconciler struct {
	mu        sync.Mutex
	installed *bart.Table[RouteEntry]

	Installer ForwardingInstaller
	Table     int
	Logger    *log.Logger
}

// NewReconciler returns a Reconciler with an empty installed snapshot,
// programming table via installer.
func NewReconciler(installer ForwardingInstaller, table int) *Reconciler {
	return &Reconciler{
		installed: new(bart.Table[RouteEntry]),
		Installer: installer,
		Table:     table,
	}
}

func (r *Reconciler) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.Default()
}

// Desired computes the set of RouteEntry records implied by paths
// (SPF's first-hop-per-destination view) and lsas (for their
// advertised prefixes), keeping only entries whose first hop is a
// currently live neighbor, per spec §4.5 algorithm steps 1 and 2. table
// is the configured routing table id stamped onto every entry.
func Desired(paths map[romam.RouterID]spf.Result, lsas []wire.LSA, neighbors *neighbor.Table, table int) []RouteEntry {
	var out []RouteEntry
	for _, l := range lsas {
		if len(l.Prefixes) == 0 {
			continue
		}
		res, ok := paths[l.Originator]
		if !ok {
			continue
		}
		n, ok := neighbors.Get(res.FirstHop)
		if !ok {
			continue
		}
		for _, pfx := range l.Prefixes {
			out = append(out, RouteEntry{
				Dst:     pfx,
				Gateway: n.IP,
				IfIndex: n.IfIndex,
				Metric:  BaseMetric + res.Cost,
				Table:   table,
			})
		}
	}
	return out
}

// Reconcile diffs desired against the last-installed snapshot and
// drives the installer: replaces for adds/changes (installed before
// any deletes, so active flows migrate rather than blackhole), deletes
// for entries no longer desired. A per-route install failure is
// logged and the new installed snapshot keeps whatever entry was
// installed for that prefix before (none if it is new), so the next
// Reconcile call retries it; other routes are unaffected.
func (r *Reconciler) Reconcile(desired []RouteEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := new(bart.Table[RouteEntry])

	for _, d := range desired {
		if err := r.Installer.Replace(d); err != nil {
			r.logger().Printf("rib: replace %s via %v failed: %v", d.Dst, d.Gateway, err)
			// Leave next holding whatever was actually installed before
			// (possibly nothing), so the failed prefix is retried next time.
			if old, ok := r.installed.Get(d.key()); ok {
				next.Insert(d.key(), old)
			}
			continue
		}
		next.Insert(d.key(), d)
	}

	for pfx, old := range r.installed.All() {
		if _, ok := next.Get(pfx); ok {
			continue
		}
		if err := r.Installer.Delete(old); err != nil {
			r.logger().Printf("rib: delete %s failed: %v", old.Dst, err)
			next.Insert(pfx, old)
			continue
		}
	}

	r.installed = next
}

// Withdraw deletes every currently installed route. Errors are logged
// and otherwise ignored: this is a best-effort cleanup called on
// shutdown.
func (r *Reconciler) Withdraw() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range r.installed.All() {
		if err := r.Installer.Delete(entry); err != nil {
			r.logger().Printf("rib: withdraw %s failed: %v", entry.Dst, err)
		}
	}
	r.installed = new(bart.Table[RouteEntry])
}

// Installed returns every currently installed RouteEntry, in
// unspecified order.
func (r *Reconciler) Installed() []RouteEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]RouteEntry, 0, r.installed.Size())
	for _, e := range r.installed.All() {
		out = append(out, e)
	}
	return out
}
