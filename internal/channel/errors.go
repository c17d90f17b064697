package channel

import "errors"

// ErrDuplicateName is returned when two channels resolve to the same name.
var ErrDuplicateName = errors.New("duplicate channel name")

// ErrReservedName is returned when an input is named like an output or a
// Modbus input, so its prefix would not match its kind.
var ErrReservedName = errors.New("input name reserved for another channel kind")
