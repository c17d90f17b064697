package network

import (
	"errors"
	"net"
	"testing"
)

type fakeInterfaces struct {
	iface *net.Interface
	addrs []net.Addr
	err   error
}

func (f *fakeInterfaces) InterfaceByName(name string) (*net.Interface, error) {
	if f.iface == nil {
		return nil, errors.New("no such network interface")
	}
	return f.iface, nil
}

func (f *fakeInterfaces) Addrs(*net.Interface) ([]net.Addr, error) {
	return f.addrs, f.err
}

func ipNet(s string) *net.IPNet {
	ip, n, _ := net.ParseCIDR(s)
	n.IP = ip
	return n
}

func TestLinkReady(t *testing.T) {
	up := &net.Interface{Name: "eth0", Flags: net.FlagUp}
	down := &net.Interface{Name: "eth0"}

	tests := []struct {
		name   string
		ifaces *fakeInterfaces
		want   error
	}{
		{"missing interface", &fakeInterfaces{}, ErrNoHardware},
		{"link down", &fakeInterfaces{iface: down}, ErrLinkDown},
		{"no addresses", &fakeInterfaces{iface: up}, ErrNoAddress},
		{"link-local only", &fakeInterfaces{iface: up, addrs: []net.Addr{ipNet("169.254.3.4/16")}}, ErrNoAddress},
		{"addr lookup error", &fakeInterfaces{iface: up, err: errors.New("boom")}, ErrNoAddress},
		{"ready", &fakeInterfaces{iface: up, addrs: []net.Addr{ipNet("fe80::1/64"), ipNet("192.168.1.20/24")}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := NewLinkWith("eth0", tt.ifaces)
			err := link.Ready()
			if tt.want == nil {
				if err != nil {
					t.Errorf("Ready() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Ready() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLinkDisabled(t *testing.T) {
	link := NewLinkWith("", &fakeInterfaces{})
	if err := link.Ready(); err != nil {
		t.Errorf("Ready() with no interface configured = %v, want nil", err)
	}
	if got := link.Address(); got != "" {
		t.Errorf("Address() = %q, want empty", got)
	}
}

func TestLinkAddress(t *testing.T) {
	up := &net.Interface{Name: "eth0", Flags: net.FlagUp}
	ifaces := &fakeInterfaces{iface: up, addrs: []net.Addr{ipNet("10.0.0.7/8")}}
	link := NewLinkWith("eth0", ifaces)

	if got := link.Address(); got != "" {
		t.Errorf("Address() before Ready = %q, want empty", got)
	}
	if err := link.Ready(); err != nil {
		t.Fatalf("Ready() error = %v", err)
	}
	if got := link.Address(); got != "10.0.0.7/8" {
		t.Errorf("Address() = %q, want 10.0.0.7/8", got)
	}

	ifaces.addrs = nil
	if err := link.Ready(); err == nil {
		t.Fatal("Ready() with no address = nil, want error")
	}
	if got := link.Address(); got != "" {
		t.Errorf("Address() after failed Ready = %q, want empty", got)
	}
}
