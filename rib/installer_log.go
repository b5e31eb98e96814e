package rib

import "log"

// LogInstaller is a dry-run ForwardingInstaller that only logs what it
// would have done. It is valid for tests and development, and is the
// installer selected on non-Linux hosts or when --dry-run is passed on
// the CLI, per spec §6.
type LogInstaller struct {
	Logger *log.Logger
}

func (i *LogInstaller) logger() *log.Logger {
	if i.Logger != nil {
		return i.Logger
	}
	return log.Default()
}

// Replace logs e as if it had been installed. It never fails.
func (i *LogInstaller) Replace(e RouteEntry) error {
	i.logger().Printf("rib: (dry-run) replace %s via %v ifindex=%d metric=%d table=%d",
		e.Dst, e.Gateway, e.IfIndex, e.Metric, e.Table)
	return nil
}

// Delete logs e as if it had been removed. It never fails.
func (i *LogInstaller) Delete(e RouteEntry) error {
	i.logger().Printf("rib: (dry-run) delete %s via %v table=%d", e.Dst, e.Gateway, e.Table)
	return nil
}
