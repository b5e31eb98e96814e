// Package romam defines the shared IPv4 routing primitives used by every
// Romam subpackage: router identifiers and advertised network prefixes.
package romam

import (
	"fmt"
	"net"
)

// A RouterID is a 32-bit opaque identifier, conventionally rendered as a
// dotted-decimal IPv4-shaped quad. It is set once at daemon startup from
// configuration and never changes for the lifetime of the process.
type RouterID [4]byte

// String returns the dotted-decimal representation of r.
func (r RouterID) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", r[0], r[1], r[2], r[3])
}

// RouterIDFromIP converts a 4-byte IPv4 address into a RouterID. It panics
// if ip is not a valid 4-byte (or 4-in-16) IPv4 address, since callers are
// expected to have already validated the address.
func RouterIDFromIP(ip net.IP) RouterID {
	v4 := ip.To4()
	if v4 == nil {
		panic("romam: not an IPv4 address")
	}
	var r RouterID
	copy(r[:], v4)
	return r
}

// IP returns r as a net.IP.
func (r RouterID) IP() net.IP {
	return net.IPv4(r[0], r[1], r[2], r[3])
}

// ParseRouterID parses a dotted-decimal RouterID such as "10.0.0.1".
func ParseRouterID(s string) (RouterID, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return RouterID{}, fmt.Errorf("romam: invalid router id %q", s)
	}
	v4 := ip.To4()
	if v4 == nil {
		return RouterID{}, fmt.Errorf("romam: router id %q is not IPv4", s)
	}
	return RouterIDFromIP(v4), nil
}

// A Prefix is an IPv4 network and prefix length. The bits of Network
// outside PrefixLen must be zero.
type Prefix struct {
	Network   [4]byte
	PrefixLen uint8
}

// String returns the CIDR representation of p, e.g. "10.0.0.0/24".
func (p Prefix) String() string {
	return fmt.Sprintf("%d.%d.%d.%d/%d", p.Network[0], p.Network[1], p.Network[2], p.Network[3], p.PrefixLen)
}

// ParsePrefix parses a CIDR string such as "10.0.0.0/24" into a Prefix,
// masking off any network bits outside the prefix length.
func ParsePrefix(s string) (Prefix, error) {
	ip, ipnet, err := net.ParseCIDR(s)
	if err != nil {
		return Prefix{}, fmt.Errorf("romam: invalid prefix %q: %w", s, err)
	}
	if ip.To4() == nil {
		return Prefix{}, fmt.Errorf("romam: prefix %q is not IPv4", s)
	}

	ones, bits := ipnet.Mask.Size()
	if bits != 32 {
		return Prefix{}, fmt.Errorf("romam: prefix %q is not IPv4", s)
	}

	var p Prefix
	copy(p.Network[:], ipnet.IP.To4())
	p.PrefixLen = uint8(ones)
	return p, nil
}

// Equal reports whether p and o designate the same network.
func (p Prefix) Equal(o Prefix) bool {
	return p.Network == o.Network && p.PrefixLen == o.PrefixLen
}
