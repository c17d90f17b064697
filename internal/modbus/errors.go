package modbus

import "errors"

// Domain errors for the Modbus package.
var (
	// ErrInvalidChannel is returned when a channel name is not M<device>I<index>
	// or names a device or index outside the configured ranges.
	ErrInvalidChannel = errors.New("modbus: invalid channel")

	// ErrInvalidValue is returned when a command value does not fit a register.
	ErrInvalidValue = errors.New("modbus: invalid value")

	// ErrBus is returned when a bus transaction fails.
	ErrBus = errors.New("modbus: bus transaction failed")

	// ErrUnsupportedMode is returned for a transport mode other than tcp or rtu.
	ErrUnsupportedMode = errors.New("modbus: unsupported mode")
)
