package rib

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
)

// LinuxInstaller programs RouteEntry values into a Linux kernel routing
// table via rtnetlink, the provided implementation required by spec §6
// for hosts where a kernel forwarding table exists.
type LinuxInstaller struct {
	// Protocol tags installed routes so they can be told apart from
	// routes added by other processes sharing the table.
	Protocol int
}

// NewLinuxInstaller returns a LinuxInstaller tagging routes with the
// given rtnetlink protocol number.
func NewLinuxInstaller(protocol int) *LinuxInstaller {
	return &LinuxInstaller{Protocol: protocol}
}

func (i *LinuxInstaller) route(e RouteEntry) *netlink.Route {
	return &netlink.Route{
		Dst: &net.IPNet{
			IP:   net.IP(e.Dst.Network[:]),
			Mask: net.CIDRMask(int(e.Dst.PrefixLen), 32),
		},
		Gw:        net.IP(e.Gateway[:]),
		LinkIndex: e.IfIndex,
		Table:     e.Table,
		Priority:  int(e.Metric),
		Protocol:  netlink.RouteProtocol(i.Protocol),
	}
}

// Replace installs or updates e via RouteReplace, which is idempotent:
// installing the same entry twice leaves the kernel table unchanged
// after the first call.
func (i *LinuxInstaller) Replace(e RouteEntry) error {
	if err := netlink.RouteReplace(i.route(e)); err != nil {
		return fmt.Errorf("rib: netlink route replace %s: %w", e.Dst, err)
	}
	return nil
}

// Delete removes e from the kernel table.
func (i *LinuxInstaller) Delete(e RouteEntry) error {
	if err := netlink.RouteDel(i.route(e)); err != nil {
		return fmt.Errorf("rib: netlink route delete %s: %w", e.Dst, err)
	}
	return nil
}
