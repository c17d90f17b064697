// Package network gates messaging on the state of a network interface.
package network

import (
	"fmt"
	"net"
)

// Interfaces abstracts interface lookup so tests can supply fixed state.
type Interfaces interface {
	InterfaceByName(name string) (*net.Interface, error)
	Addrs(iface *net.Interface) ([]net.Addr, error)
}

// system looks interfaces up on the host.
type system struct{}

func (system) InterfaceByName(name string) (*net.Interface, error) { return net.InterfaceByName(name) }
func (system) Addrs(iface *net.Interface) ([]net.Addr, error)     { return iface.Addrs() }

// Link reports whether an interface is ready to carry MQTT traffic.
// An empty interface name disables the check.
type Link struct {
	name   string
	ifaces Interfaces

	// addr is the usable address found by the last successful Ready.
	addr string
}

// NewLink returns a Link for the named host interface.
func NewLink(name string) *Link {
	return &Link{name: name, ifaces: system{}}
}

// NewLinkWith returns a Link that queries the given Interfaces.
func NewLinkWith(name string, ifaces Interfaces) *Link {
	return &Link{name: name, ifaces: ifaces}
}

// Ready checks the interface without blocking.
//
// Returns:
//   - nil: The interface is up with a unicast address
//   - ErrNoHardware: The interface does not exist
//   - ErrLinkDown: The interface is administratively or physically down
//   - ErrNoAddress: No non-loopback unicast address has been assigned yet
func (l *Link) Ready() error {
	l.addr = ""
	if l.name == "" {
		return nil
	}

	iface, err := l.ifaces.InterfaceByName(l.name)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNoHardware, l.name, err)
	}
	if iface.Flags&net.FlagUp == 0 {
		return fmt.Errorf("%w: %s", ErrLinkDown, l.name)
	}

	addrs, err := l.ifaces.Addrs(iface)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNoAddress, l.name, err)
	}
	for _, a := range addrs {
		if usable(a) {
			l.addr = a.String()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNoAddress, l.name)
}

// Address returns the usable address found by the last Ready call, or ""
// if that call failed or no interface is configured.
func (l *Link) Address() string { return l.addr }

// usable reports whether a is a global or private unicast IP.
func usable(a net.Addr) bool {
	var ip net.IP
	switch v := a.(type) {
	case *net.IPNet:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	default:
		return false
	}
	return ip != nil && !ip.IsLoopback() && !ip.IsLinkLocalUnicast() && !ip.IsUnspecified()
}
