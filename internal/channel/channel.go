package channel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/plcbridge/internal/infrastructure/config"
)

// Kind classifies a channel by its hardware path.
type Kind int

const (
	// Relay is a relay output, named R<n>.
	Relay Kind = iota

	// DigitalOutput is a transistor output, named D<n>.
	DigitalOutput

	// DigitalInput is a local input read from a pin.
	DigitalInput

	// ModbusInput is a discrete input on a fieldbus device, named M<device>I<index>.
	ModbusInput
)

// String returns the lower-case kind name used in logs and telemetry tags.
func (k Kind) String() string {
	switch k {
	case Relay:
		return "relay"
	case DigitalOutput:
		return "digital_output"
	case DigitalInput:
		return "digital_input"
	case ModbusInput:
		return "modbus_input"
	default:
		return "unknown"
	}
}

// IsOutput reports whether the channel is driven by this controller.
func (k Kind) IsOutput() bool {
	return k == Relay || k == DigitalOutput
}

// Channel is one addressable I/O point. It is immutable once the table is built.
type Channel struct {
	Name string
	Kind Kind

	// Address is the physical pin for Relay, DigitalOutput and DigitalInput.
	// For ModbusInput it is the input index on the device.
	Address int

	// Device is the Modbus device number; zero for local channels.
	Device int

	// PullUp requests the input bias for DigitalInput channels.
	PullUp bool
}

// Bank maps logical outputs [Start, End) onto consecutive pins from BasePin.
type Bank struct {
	Start   int
	End     int
	BasePin int
}

// Table is the static channel inventory of the controller.
//
// It is built once from configuration and never modified, so it may be
// shared freely.
type Table struct {
	relays   []Channel
	outputs  []Channel
	inputs   []Channel
	modbus   []Channel
	byName   map[string]Channel
	banks    []Bank
	relayPin int

	modbusDevices   int
	inputsPerDevice int
	longest         int
}

// NewTable builds the channel table.
//
// Relays are R0..R(relayCount-1) on consecutive pins, digital outputs are
// D0..D(n-1) split across banks, inputs come from the configured list, and
// Modbus inputs are M<d>I<i> for every device d and index i when Modbus
// is enabled.
//
// Returns:
//   - *Table: The immutable table
//   - error: ErrDuplicateName if two channels share a name
func NewTable(cfg *config.Config) (*Table, error) {
	t := &Table{
		byName:   make(map[string]Channel),
		relayPin: cfg.IO.RelayBasePin,
	}

	for _, b := range cfg.IO.OutputBanks {
		t.banks = append(t.banks, Bank{Start: b.Start, End: b.End, BasePin: b.BasePin})
	}

	for n := 0; n < cfg.IO.RelayCount; n++ {
		ch := Channel{Name: RelayName(n), Kind: Relay, Address: t.relayPin + n}
		if err := t.add(ch); err != nil {
			return nil, err
		}
		t.relays = append(t.relays, ch)
	}

	for n := 0; n < cfg.IO.OutputCount(); n++ {
		pin, _ := t.OutputPin(n)
		ch := Channel{Name: OutputName(n), Kind: DigitalOutput, Address: pin}
		if err := t.add(ch); err != nil {
			return nil, err
		}
		t.outputs = append(t.outputs, ch)
	}

	for _, in := range cfg.IO.Inputs {
		if reservedName(in.Name) {
			return nil, fmt.Errorf("%w: %s", ErrReservedName, in.Name)
		}
		ch := Channel{Name: in.Name, Kind: DigitalInput, Address: in.Pin, PullUp: in.PullUp}
		if err := t.add(ch); err != nil {
			return nil, err
		}
		t.inputs = append(t.inputs, ch)
	}

	if cfg.Modbus.Enabled {
		t.modbusDevices = cfg.Modbus.DeviceCount
		t.inputsPerDevice = cfg.Modbus.InputsPerDevice
		for d := 0; d < t.modbusDevices; d++ {
			for i := 0; i < t.inputsPerDevice; i++ {
				ch := Channel{Name: ModbusName(d, i), Kind: ModbusInput, Address: i, Device: d}
				if err := t.add(ch); err != nil {
					return nil, err
				}
				t.modbus = append(t.modbus, ch)
			}
		}
	}

	return t, nil
}

func (t *Table) add(ch Channel) error {
	if _, exists := t.byName[ch.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateName, ch.Name)
	}
	t.byName[ch.Name] = ch
	if len(ch.Name) > t.longest {
		t.longest = len(ch.Name)
	}
	return nil
}

// Lookup returns the channel with the given name.
func (t *Table) Lookup(name string) (Channel, bool) {
	ch, ok := t.byName[name]
	return ch, ok
}

// Relays returns relay channels in R0..Rn order.
func (t *Table) Relays() []Channel { return t.relays }

// Outputs returns digital output channels in D0..Dn order.
func (t *Table) Outputs() []Channel { return t.outputs }

// Inputs returns local digital input channels in configured order.
func (t *Table) Inputs() []Channel { return t.inputs }

// ModbusInputs returns Modbus input channels, device-major then index-minor.
func (t *Table) ModbusInputs() []Channel { return t.modbus }

// RelayCount returns the number of relay channels.
func (t *Table) RelayCount() int { return len(t.relays) }

// OutputCount returns the number of digital output channels.
func (t *Table) OutputCount() int { return len(t.outputs) }

// ModbusDevices returns the configured Modbus device count (0 when disabled).
func (t *Table) ModbusDevices() int { return t.modbusDevices }

// InputsPerDevice returns the number of discrete inputs per Modbus device.
func (t *Table) InputsPerDevice() int { return t.inputsPerDevice }

// LongestName returns the length of the longest channel name in the table.
func (t *Table) LongestName() int { return t.longest }

// RelayPin maps relay number n to its pin.
//
// Returns:
//   - int: The physical pin
//   - bool: false if n is outside 0 <= n < RelayCount
func (t *Table) RelayPin(n int) (int, bool) {
	if n < 0 || n >= len(t.relays) {
		return 0, false
	}
	return t.relayPin + n, true
}

// OutputPin maps digital output number n to its pin.
//
// Pin numbering is not contiguous across banks: within a bank the pin is
// BasePin + (n - Start).
//
// Returns:
//   - int: The physical pin
//   - bool: false if n falls in no bank
func (t *Table) OutputPin(n int) (int, bool) {
	for _, b := range t.banks {
		if n >= b.Start && n < b.End {
			return b.BasePin + (n - b.Start), true
		}
	}
	return 0, false
}

// RelayName returns the channel name of relay n.
func RelayName(n int) string { return "R" + strconv.Itoa(n) }

// OutputName returns the channel name of digital output n.
func OutputName(n int) string { return "D" + strconv.Itoa(n) }

// ModbusName returns the channel name of input index on Modbus device.
func ModbusName(device, index int) string {
	return "M" + strconv.Itoa(device) + "I" + strconv.Itoa(index)
}

// ParseModbusName splits "M<device>I<index>" into its numbers.
// Only plain decimal digits are accepted in either part.
func ParseModbusName(name string) (device, index int, ok bool) {
	rest, found := strings.CutPrefix(name, "M")
	if !found {
		return 0, 0, false
	}
	dev, idx, found := strings.Cut(rest, "I")
	if !found {
		return 0, 0, false
	}
	device, ok = ParseNumber(dev)
	if !ok {
		return 0, 0, false
	}
	index, ok = ParseNumber(idx)
	if !ok {
		return 0, 0, false
	}
	return device, index, true
}

// reservedName reports whether name has the form of a relay, digital
// output or Modbus input channel.
func reservedName(name string) bool {
	if name == "" {
		return false
	}
	switch name[0] {
	case 'R', 'D':
		_, ok := ParseNumber(name[1:])
		return ok
	}
	_, _, ok := ParseModbusName(name)
	return ok
}

// ParseNumber parses the numeric suffix of a channel name such as the
// "12" in "D12". Signs, spaces and empty strings are rejected.
func ParseNumber(s string) (int, bool) {
	if s == "" || strings.TrimLeft(s, "0123456789") != "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}
