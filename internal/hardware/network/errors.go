package network

import "errors"

var (
	// ErrNoHardware is returned when the configured interface does not exist.
	// Networking cannot start without it.
	ErrNoHardware = errors.New("network: interface not found")

	// ErrLinkDown is returned when the interface exists but is not up.
	ErrLinkDown = errors.New("network: link down")

	// ErrNoAddress is returned when the interface is up but has no usable address yet.
	ErrNoAddress = errors.New("network: no address assigned")
)
