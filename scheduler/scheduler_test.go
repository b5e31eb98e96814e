package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/puyanguvic/romam"
	"github.com/puyanguvic/romam/wire"
)

func TestRunOriginatesOnStartup(t *testing.T) {
	s := New(time.Hour, time.Hour, time.Hour)

	var mu sync.Mutex
	originated := 0
	s.Hooks.Originate = func() {
		mu.Lock()
		originated++
		mu.Unlock()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	if originated != 1 {
		t.Fatalf("originated = %d, want 1 (startup only, no ticks fired)", originated)
	}
}

func TestRunFiresHelloTicker(t *testing.T) {
	s := New(5*time.Millisecond, time.Hour, time.Hour)

	var mu sync.Mutex
	hellos := 0
	s.Hooks.SendHello = func() {
		mu.Lock()
		hellos++
		mu.Unlock()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	if hellos == 0 {
		t.Fatal("SendHello never fired")
	}
}

func TestRunReoriginatesOnNeighborDown(t *testing.T) {
	s := New(time.Hour, time.Hour, 5*time.Millisecond)

	var mu sync.Mutex
	originated := 0
	expireCalls := 0
	s.Hooks.Originate = func() {
		mu.Lock()
		originated++
		mu.Unlock()
	}
	s.Hooks.ExpireNeighbors = func(now time.Time) []romam.RouterID {
		mu.Lock()
		defer mu.Unlock()
		expireCalls++
		if expireCalls == 1 {
			return []romam.RouterID{{10, 0, 0, 2}}
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	if originated < 2 {
		t.Fatalf("originated = %d, want >= 2 (startup + neighbor-down reoriginate)", originated)
	}
}

func TestRunCallsShutdownOnCancel(t *testing.T) {
	s := New(time.Hour, time.Hour, time.Hour)

	shutdown := make(chan struct{}, 1)
	s.Hooks.Shutdown = func() { shutdown <- struct{}{} }

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	if err := s.Run(ctx); err != context.Canceled {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}

	select {
	case <-shutdown:
	default:
		t.Fatal("Shutdown hook was not called before Run returned")
	}
}

func TestDeliverDispatchesToHandleFrame(t *testing.T) {
	s := New(time.Hour, time.Hour, time.Hour)

	delivered := make(chan wire.Frame, 1)
	s.Hooks.HandleFrame = func(f wire.Frame, sourceIP [4]byte, ifIndex int) {
		delivered <- f
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Run(ctx)

	hello := &wire.Hello{Originator: romam.RouterID{10, 0, 0, 1}}
	s.Deliver(ctx, hello, [4]byte{10, 0, 0, 1}, 2)

	select {
	case f := <-delivered:
		h, ok := f.(*wire.Hello)
		if !ok || h.Originator != hello.Originator {
			t.Fatalf("delivered frame = %+v, want %+v", f, hello)
		}
	case <-time.After(time.Second):
		t.Fatal("HandleFrame was never invoked")
	}
}
