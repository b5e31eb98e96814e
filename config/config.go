// Package config reads Romam's configuration file: a line-oriented
// key=value dialect with repeatable keys and inline name:cost /
// ip:port sub-values.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/puyanguvic/romam"
)

// Default values applied when the corresponding key is absent from the
// file.
const (
	DefaultMulticastGroup = "239.255.0.1"
	DefaultMulticastPort  = 5000
	DefaultHelloInterval  = time.Second
	DefaultDeadInterval   = 5 * time.Second
	DefaultLSAInterval    = 3 * time.Second
	DefaultRouteTable     = 100
	DefaultRouteMetric    = 100
)

// A Config is Romam's fully parsed configuration.
type Config struct {
	RouterID          romam.RouterID
	Loopback          *romam.Prefix
	Interfaces        []string
	InterfaceCost     map[string]uint32
	AdvertisePrefixes []romam.Prefix

	MulticastGroup string
	MulticastPort  int

	HelloInterval time.Duration
	DeadInterval  time.Duration
	LSAInterval   time.Duration

	RouteTable  int
	RouteMetric uint32

	// RoutingAlgo selects the forwarding-path selector mode: one of
	// "shortest", "kshort", "ecmp", "budget_aware", "bandit".
	RoutingAlgo string
}

// Load reads and parses the configuration file at path.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	return parse(f)
}

func parse(r io.Reader) (Config, error) {
	cfg := Config{
		InterfaceCost:  make(map[string]uint32),
		MulticastGroup: DefaultMulticastGroup,
		MulticastPort:  DefaultMulticastPort,
		HelloInterval:  DefaultHelloInterval,
		DeadInterval:   DefaultDeadInterval,
		LSAInterval:    DefaultLSAInterval,
		RouteTable:     DefaultRouteTable,
		RouteMetric:    DefaultRouteMetric,
		RoutingAlgo:    "shortest",
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value := splitKeyValue(line)
		if key == "" {
			continue
		}

		if err := cfg.applyKey(key, value, lineNo); err != nil {
			return Config{}, err
		}
	}
	if err := scanner.Err(); err != nil {
		return Config{}, fmt.Errorf("config: read: %w", err)
	}

	if cfg.RouterID == (romam.RouterID{}) {
		return Config{}, fmt.Errorf("config: router_id is required")
	}
	if len(cfg.Interfaces) == 0 {
		return Config{}, fmt.Errorf("config: at least one iface is required")
	}

	return cfg, nil
}

func (cfg *Config) applyKey(key, value string, lineNo int) error {
	switch key {
	case "router_id":
		id, err := romam.ParseRouterID(value)
		if err != nil {
			return fmt.Errorf("config: invalid router_id at line %d: %w", lineNo, err)
		}
		cfg.RouterID = id

	case "loopback":
		pfx, err := romam.ParsePrefix(value)
		if err != nil {
			return fmt.Errorf("config: invalid loopback at line %d: %w", lineNo, err)
		}
		cfg.Loopback = &pfx

	case "iface":
		if value == "" {
			return fmt.Errorf("config: empty iface at line %d", lineNo)
		}
		cfg.Interfaces = append(cfg.Interfaces, value)

	case "iface_cost":
		name, cost, ok := splitOnce(value, ':')
		if !ok || name == "" || cost == "" {
			return fmt.Errorf("config: invalid iface_cost at line %d", lineNo)
		}
		c, err := strconv.ParseUint(cost, 10, 32)
		if err != nil {
			return fmt.Errorf("config: invalid iface_cost at line %d: %w", lineNo, err)
		}
		cfg.InterfaceCost[name] = uint32(c)

	case "prefix":
		pfx, err := romam.ParsePrefix(value)
		if err != nil {
			return fmt.Errorf("config: invalid prefix at line %d: %w", lineNo, err)
		}
		cfg.AdvertisePrefixes = append(cfg.AdvertisePrefixes, pfx)

	case "multicast":
		ip, port, ok := splitOnce(value, ':')
		if !ok {
			return fmt.Errorf("config: invalid multicast at line %d", lineNo)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("config: invalid multicast port at line %d: %w", lineNo, err)
		}
		cfg.MulticastGroup = ip
		cfg.MulticastPort = p

	case "hello_interval_ms":
		d, err := parseMs(value)
		if err != nil {
			return fmt.Errorf("config: invalid hello_interval_ms at line %d: %w", lineNo, err)
		}
		cfg.HelloInterval = d

	case "dead_interval_ms":
		d, err := parseMs(value)
		if err != nil {
			return fmt.Errorf("config: invalid dead_interval_ms at line %d: %w", lineNo, err)
		}
		cfg.DeadInterval = d

	case "lsa_interval_ms":
		d, err := parseMs(value)
		if err != nil {
			return fmt.Errorf("config: invalid lsa_interval_ms at line %d: %w", lineNo, err)
		}
		cfg.LSAInterval = d

	case "route_table":
		t, err := strconv.Atoi(value)
		if err != nil || t < 0 || t > 255 {
			return fmt.Errorf("config: route_table must be 0-255 at line %d", lineNo)
		}
		cfg.RouteTable = t

	case "route_metric_base":
		m, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("config: invalid route_metric_base at line %d: %w", lineNo, err)
		}
		cfg.RouteMetric = uint32(m)

	case "routing_algo":
		if value == "" {
			return fmt.Errorf("config: empty routing_algo at line %d", lineNo)
		}
		cfg.RoutingAlgo = value

	default:
		return fmt.Errorf("config: unknown key at line %d: %s", lineNo, key)
	}

	return nil
}

func splitKeyValue(line string) (key, value string) {
	i := strings.IndexByte(line, '=')
	if i < 0 {
		return strings.TrimSpace(line), ""
	}
	return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:])
}

func splitOnce(s string, sep byte) (a, b string, ok bool) {
	i := strings.IndexByte(s, sep)
	if i < 0 {
		return "", "", false
	}
	return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), true
}

func parseMs(v string) (time.Duration, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Millisecond, nil
}
