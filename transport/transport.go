// Package transport is Romam's multicast UDP/IPv4 datagram endpoint:
// one socket per process, joined to the group on every participating
// interface, with per-interface send and ingress-ifindex-reporting
// receive.
package transport

import (
	"context"
	"fmt"
	"log"
	"net"
	"syscall"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"

	"github.com/puyanguvic/romam/wire"
)

// DefaultGroup and DefaultPort are Romam's default multicast rendezvous
// point, per spec §6.
const (
	DefaultGroup = "239.255.0.1"
	DefaultPort  = 5000
)

const multicastTTL = 1

// reuseAddr sets SO_REUSEADDR on the listening socket before bind, so
// more than one Romam process (or, in tests, more than one simulated
// router) can share the same multicast group and port on one host.
func reuseAddr(_, _ string, c syscall.RawConn) error {
	var sockErr error
	if err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	}); err != nil {
		return err
	}
	return sockErr
}

// A Conn sends and receives Romam wire frames over IPv4 multicast UDP.
type Conn struct {
	c      *ipv4.PacketConn
	group  *net.UDPAddr
	ifaces []*net.Interface
}

// Listen opens a multicast UDP/IPv4 socket bound to port, and joins the
// given group on every interface in ifaces so hellos and LSAs can be
// both sent and received on each of them.
func Listen(group string, port int, ifaces []*net.Interface) (*Conn, error) {
	lc := net.ListenConfig{Control: reuseAddr}
	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("transport: listen: %w", err)
	}
	c := ipv4.NewPacketConn(pc)

	if err := c.SetControlMessage(ipv4.FlagInterface|ipv4.FlagSrc, true); err != nil {
		return nil, fmt.Errorf("transport: set control message: %w", err)
	}
	if err := c.SetMulticastTTL(multicastTTL); err != nil {
		return nil, fmt.Errorf("transport: set multicast ttl: %w", err)
	}
	if err := c.SetMulticastLoopback(false); err != nil {
		return nil, fmt.Errorf("transport: disable multicast loopback: %w", err)
	}

	groupIP := net.ParseIP(group)
	if groupIP == nil {
		return nil, fmt.Errorf("transport: invalid multicast group %q", group)
	}
	groupAddr := &net.UDPAddr{IP: groupIP, Port: port}

	for _, ifi := range ifaces {
		if err := c.JoinGroup(ifi, groupAddr); err != nil {
			return nil, fmt.Errorf("transport: join group on %s: %w", ifi.Name, err)
		}
	}

	return &Conn{c: c, group: groupAddr, ifaces: ifaces}, nil
}

// Close leaves every joined group and closes the underlying socket.
func (c *Conn) Close() error {
	for _, ifi := range c.ifaces {
		_ = c.c.LeaveGroup(ifi, c.group)
	}
	return c.c.Close()
}

// A Received frame carries its decoded payload plus where it arrived
// from, for use by the scheduler in resolving a neighbor's ingress
// interface and source address.
type Received struct {
	Frame   wire.Frame
	Source  net.IP
	IfIndex int
}

// ReadFrom blocks until a valid Romam frame is received or deadline
// elapses, whichever comes first. Frames that fail to decode are
// logged through the standard library's default logger and skipped,
// and reading continues, per spec §7's tolerance for malformed input
// from non-Romam senders sharing the group.
func (c *Conn) ReadFrom(deadline time.Time) (Received, error) {
	buf := make([]byte, 65535)
	if err := c.c.SetReadDeadline(deadline); err != nil {
		return Received{}, fmt.Errorf("transport: set read deadline: %w", err)
	}

	for {
		n, cm, src, err := c.c.ReadFrom(buf)
		if err != nil {
			return Received{}, err
		}

		frame, err := wire.Decode(buf[:n])
		if err != nil {
			log.Printf("transport: discarding undecodable frame from %v: %v", src, err)
			continue
		}

		var ifIndex int
		var srcIP net.IP
		if cm != nil {
			ifIndex = cm.IfIndex
			srcIP = cm.Src
		}
		if srcIP == nil {
			if udpAddr, ok := src.(*net.UDPAddr); ok {
				srcIP = udpAddr.IP
			}
		}

		return Received{Frame: frame, Source: srcIP, IfIndex: ifIndex}, nil
	}
}

// WriteTo sends a single already-encoded frame out ifi toward the
// multicast group, selecting ifi as the egress interface for this one
// write.
func (c *Conn) WriteTo(b []byte, ifi *net.Interface) error {
	if err := c.c.SetMulticastInterface(ifi); err != nil {
		return fmt.Errorf("transport: set egress interface %s: %w", ifi.Name, err)
	}
	if _, err := c.c.WriteTo(b, nil, c.group); err != nil {
		return fmt.Errorf("transport: write to %s via %s: %w", c.group, ifi.Name, err)
	}
	return nil
}
