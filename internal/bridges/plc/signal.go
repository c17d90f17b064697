package plc

import (
	"strconv"
)

// Signal is a hardware-level value carried by a command or state message.
//
// Relay and digital channels only take Low or High. Modbus channels may
// carry any non-negative magnitude.
type Signal int64

const (
	// Low is the de-energised level, rendered as "OFF".
	Low Signal = 0

	// High is the energised level, rendered as "ON".
	High Signal = 1

	// Invalid marks a payload that could not be parsed.
	Invalid Signal = -1
)

// Wire payloads.
const (
	payloadOn  = "ON"
	payloadOff = "OFF"
)

// ParseValue converts a command payload into a Signal.
//
// "ON" and "OFF" map to High and Low. A payload made only of ASCII digits
// is read as an unsigned decimal, which also covers the legacy "1"/"0"
// form. Anything else, including an empty payload or a number too large
// for a Signal, yields Invalid.
func ParseValue(payload []byte) Signal {
	switch string(payload) {
	case payloadOn:
		return High
	case payloadOff:
		return Low
	}

	if len(payload) == 0 {
		return Invalid
	}
	for _, c := range payload {
		if c < '0' || c > '9' {
			return Invalid
		}
	}

	v, err := strconv.ParseInt(string(payload), 10, 64)
	if err != nil {
		return Invalid
	}
	return Signal(v)
}

// RenderValue converts a Signal into its state payload.
//
// Low and High render as "OFF" and "ON"; the numeric "0"/"1" form is
// accepted on input but never emitted. Other magnitudes render as decimal.
func RenderValue(s Signal) []byte {
	switch s {
	case High:
		return []byte(payloadOn)
	case Low:
		return []byte(payloadOff)
	default:
		return []byte(strconv.FormatInt(int64(s), 10))
	}
}

// IsBinary reports whether s is Low or High.
func (s Signal) IsBinary() bool {
	return s == Low || s == High
}

// String implements fmt.Stringer.
func (s Signal) String() string {
	if s == Invalid {
		return "INVALID"
	}
	return string(RenderValue(s))
}
