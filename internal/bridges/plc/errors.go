package plc

import "errors"

// Domain errors for the PLC bridge package.
var (
	// ErrInvalidOutput is returned when a command names a channel that is
	// not a writable output or whose number is outside every known range.
	ErrInvalidOutput = errors.New("plc: invalid output")

	// ErrInvalidValue is returned when a command payload cannot be parsed
	// or carries a magnitude the target channel cannot take.
	ErrInvalidValue = errors.New("plc: invalid value")

	// ErrTopicTooLong is returned when an encoded topic would exceed the
	// length bound computed from configuration.
	ErrTopicTooLong = errors.New("plc: topic exceeds configured bound")

	// ErrModbusCommand is returned when the Modbus collaborator rejects a command.
	ErrModbusCommand = errors.New("plc: modbus command failed")

	// ErrSessionLost is reported when a connect attempt succeeded but the
	// session was gone by the time it was collected.
	ErrSessionLost = errors.New("plc: session lost before connect completed")

	// ErrPinWrite is returned when the pin driver fails to set an output.
	ErrPinWrite = errors.New("plc: pin write failed")
)
