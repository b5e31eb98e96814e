package neighbor

import (
	"testing"
	"time"

	"github.com/puyanguvic/romam"
)

func TestOnHelloUpThenRefresh(t *testing.T) {
	tbl := New(30 * time.Second)
	a := romam.RouterID{10, 0, 0, 1}
	now := time.Now()

	if ev := tbl.OnHello(a, [4]byte{10, 0, 0, 1}, 2, now); ev != Up {
		t.Fatalf("first OnHello = %v, want Up", ev)
	}
	if ev := tbl.OnHello(a, [4]byte{10, 0, 0, 1}, 2, now.Add(time.Second)); ev != Refresh {
		t.Fatalf("second OnHello = %v, want Refresh", ev)
	}
}

func TestExpireRemovesStaleNeighbors(t *testing.T) {
	tbl := New(10 * time.Second)
	a := romam.RouterID{10, 0, 0, 1}
	start := time.Now()

	tbl.OnHello(a, [4]byte{10, 0, 0, 1}, 2, start)

	if down := tbl.Expire(start.Add(5 * time.Second)); len(down) != 0 {
		t.Fatalf("Expire too early removed %v", down)
	}

	down := tbl.Expire(start.Add(11 * time.Second))
	if len(down) != 1 || down[0] != a {
		t.Fatalf("Expire = %v, want [%v]", down, a)
	}

	if _, ok := tbl.Get(a); ok {
		t.Fatalf("Get found expired neighbor")
	}
}

func TestKeyedByRouterIDNotIP(t *testing.T) {
	// A router reachable over two interfaces is one neighbor entry.
	tbl := New(30 * time.Second)
	a := romam.RouterID{10, 0, 0, 1}
	now := time.Now()

	tbl.OnHello(a, [4]byte{10, 0, 0, 1}, 2, now)
	tbl.OnHello(a, [4]byte{10, 0, 1, 1}, 3, now)

	if tbl.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tbl.Len())
	}
}
