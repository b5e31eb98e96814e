package config

import (
	"strings"
	"testing"
	"time"

	"github.com/puyanguvic/romam"
)

func TestParseFullConfig(t *testing.T) {
	src := `
# comment lines and blanks are ignored

router_id = 10.0.0.1
loopback = 10.0.0.1/32
iface = eth0
iface = eth1
iface_cost = eth0:5
iface_cost = eth1:10
prefix = 192.168.1.0/24
multicast = 239.255.0.2:6000
hello_interval_ms = 2000
dead_interval_ms = 8000
lsa_interval_ms = 4000
route_table = 50
route_metric_base = 10
routing_algo = ecmp
`
	cfg, err := parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if cfg.RouterID != (romam.RouterID{10, 0, 0, 1}) {
		t.Fatalf("RouterID = %v", cfg.RouterID)
	}
	if cfg.Loopback == nil || cfg.Loopback.String() != "10.0.0.1/32" {
		t.Fatalf("Loopback = %v", cfg.Loopback)
	}
	if len(cfg.Interfaces) != 2 || cfg.Interfaces[0] != "eth0" || cfg.Interfaces[1] != "eth1" {
		t.Fatalf("Interfaces = %v", cfg.Interfaces)
	}
	if cfg.InterfaceCost["eth0"] != 5 || cfg.InterfaceCost["eth1"] != 10 {
		t.Fatalf("InterfaceCost = %v", cfg.InterfaceCost)
	}
	if len(cfg.AdvertisePrefixes) != 1 || cfg.AdvertisePrefixes[0].String() != "192.168.1.0/24" {
		t.Fatalf("AdvertisePrefixes = %v", cfg.AdvertisePrefixes)
	}
	if cfg.MulticastGroup != "239.255.0.2" || cfg.MulticastPort != 6000 {
		t.Fatalf("multicast = %s:%d", cfg.MulticastGroup, cfg.MulticastPort)
	}
	if cfg.HelloInterval != 2*time.Second || cfg.DeadInterval != 8*time.Second || cfg.LSAInterval != 4*time.Second {
		t.Fatalf("intervals = %v %v %v", cfg.HelloInterval, cfg.DeadInterval, cfg.LSAInterval)
	}
	if cfg.RouteTable != 50 || cfg.RouteMetric != 10 {
		t.Fatalf("RouteTable=%d RouteMetric=%d", cfg.RouteTable, cfg.RouteMetric)
	}
	if cfg.RoutingAlgo != "ecmp" {
		t.Fatalf("RoutingAlgo = %q", cfg.RoutingAlgo)
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := parse(strings.NewReader("router_id = 10.0.0.1\niface = eth0\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if cfg.MulticastGroup != DefaultMulticastGroup || cfg.MulticastPort != DefaultMulticastPort {
		t.Fatalf("multicast defaults = %s:%d", cfg.MulticastGroup, cfg.MulticastPort)
	}
	if cfg.RoutingAlgo != "shortest" {
		t.Fatalf("RoutingAlgo default = %q, want shortest", cfg.RoutingAlgo)
	}
	if cfg.RouteTable != DefaultRouteTable {
		t.Fatalf("RouteTable default = %d", cfg.RouteTable)
	}
}

func TestParseMissingRouterID(t *testing.T) {
	_, err := parse(strings.NewReader("iface = eth0\n"))
	if err == nil {
		t.Fatal("parse succeeded without router_id, want error")
	}
}

func TestParseMissingInterfaces(t *testing.T) {
	_, err := parse(strings.NewReader("router_id = 10.0.0.1\n"))
	if err == nil {
		t.Fatal("parse succeeded without any iface, want error")
	}
}

func TestParseUnknownKey(t *testing.T) {
	_, err := parse(strings.NewReader("router_id = 10.0.0.1\niface = eth0\nbogus = 1\n"))
	if err == nil {
		t.Fatal("parse succeeded with unknown key, want error")
	}
}

func TestParseBadIfaceCost(t *testing.T) {
	_, err := parse(strings.NewReader("router_id = 10.0.0.1\niface = eth0\niface_cost = eth0\n"))
	if err == nil {
		t.Fatal("parse succeeded with malformed iface_cost, want error")
	}
}
