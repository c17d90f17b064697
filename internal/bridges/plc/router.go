package plc

import (
	"fmt"

	"github.com/nerrad567/plcbridge/internal/channel"
)

// Channel name prefixes.
const (
	prefixRelay  = 'R'
	prefixOutput = 'D'
	prefixModbus = 'M'
)

// Diagnostics published to the log topic.
const (
	msgInvalidOutput = "Incorrect output number"
	msgInvalidValue  = "Message value error"
	msgWriteFailed   = "Output write failed"
	msgModbusFailed  = "Modbus command failed"
)

// OnMessage routes one inbound message.
//
// Topics that are not commands for this device are ignored. For a command
// the steps are strictly ordered and the first failure ends processing:
// decode topic, parse payload, classify and validate the channel, write,
// publish retained state. Nothing touches hardware before validation
// succeeds, so a rejected command leaves no partial change behind.
//
// Returns:
//   - error: ErrInvalidValue, ErrInvalidOutput, ErrPinWrite or
//     ErrModbusCommand when the command was dropped; nil otherwise
func (b *Bridge) OnMessage(topic string, payload []byte) error {
	name, ok := b.topics.DecodeCommand(topic)
	if !ok {
		b.logDebug("status message ignored", "topic", topic)
		return nil
	}

	value := ParseValue(payload)
	if value == Invalid {
		err := fmt.Errorf("%w: %q for %s", ErrInvalidValue, payload, name)
		b.reject(msgInvalidValue, err, "channel", name)
		return err
	}

	switch name[0] {
	case prefixRelay:
		n, ok := channel.ParseNumber(name[1:])
		if !ok || channel.RelayName(n) != name {
			return b.invalidOutput(name)
		}
		pin, ok := b.table.RelayPin(n)
		if !ok {
			return b.invalidOutput(name)
		}
		return b.writeOutput(name, channel.Relay, pin, value)

	case prefixOutput:
		n, ok := channel.ParseNumber(name[1:])
		if !ok || channel.OutputName(n) != name {
			return b.invalidOutput(name)
		}
		pin, ok := b.table.OutputPin(n)
		if !ok {
			return b.invalidOutput(name)
		}
		return b.writeOutput(name, channel.DigitalOutput, pin, value)

	case prefixModbus:
		return b.commandModbus(name, value)

	default:
		return b.invalidOutput(name)
	}
}

// writeOutput sets a relay or digital output pin and publishes its state.
func (b *Bridge) writeOutput(name string, kind channel.Kind, pin int, value Signal) error {
	if !value.IsBinary() {
		err := fmt.Errorf("%w: %s takes ON/OFF, got %d", ErrInvalidValue, name, int64(value))
		b.reject(msgInvalidValue, err, "channel", name)
		return err
	}

	if err := b.pins.WritePin(pin, int(value)); err != nil {
		err = fmt.Errorf("%w: %s pin %d: %w", ErrPinWrite, name, pin, err)
		b.reject(msgWriteFailed, err, "channel", name)
		return err
	}

	b.outputs[name] = value
	b.outputsDirty = true
	b.saveState(name, value)

	b.logDebug("output written", "channel", name, "pin", pin, "value", value)

	if err := b.publishState(name, kind, value); err != nil {
		b.logWarn("failed to publish output state", "channel", name, "error", err)
	}
	return nil
}

// commandModbus delegates a command to the Modbus collaborator. On success
// the state is published and the channel is re-announced; on failure
// neither happens.
func (b *Bridge) commandModbus(name string, value Signal) error {
	if b.modbus == nil {
		return b.invalidOutput(name)
	}

	if err := b.modbus.ParseCommand(name, int64(value)); err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrModbusCommand, name, err)
		b.reject(msgModbusFailed, err, "channel", name)
		return err
	}

	if err := b.publishState(name, channel.ModbusInput, value); err != nil {
		b.logWarn("failed to publish modbus state", "channel", name, "error", err)
	}

	ch, ok := b.table.Lookup(name)
	if !ok {
		ch = channel.Channel{Name: name, Kind: channel.ModbusInput}
	}
	if err := b.announceChannel(ch); err != nil {
		b.logWarn("failed to re-announce modbus channel", "channel", name, "error", err)
	}
	return nil
}

func (b *Bridge) invalidOutput(name string) error {
	err := fmt.Errorf("%w: %q", ErrInvalidOutput, name)
	b.reject(msgInvalidOutput, err, "channel", name)
	return err
}
