package modbus

import (
	"fmt"
	"time"

	"github.com/nerrad567/plcbridge/internal/channel"
)

// Coil values for WriteSingleCoil.
const (
	coilOn  uint16 = 0xFF00
	coilOff uint16 = 0x0000
)

// unknownLevel marks an input that has not been read yet.
const unknownLevel = -1

// SlaveSelector addresses subsequent bus transactions to one slave.
type SlaveSelector interface {
	SelectSlave(id byte)
}

// Logger interface for optional logging.
type Logger interface {
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
}

// PollerConfig describes the device chain.
type PollerConfig struct {
	// Devices is the number of devices M0..M(n-1).
	Devices int

	// InputsPerDevice is the number of discrete inputs on each device.
	InputsPerDevice int

	// FirstSlaveID is the slave address of M0.
	FirstSlaveID int

	// Interval is the minimum time between two device polls.
	Interval time.Duration
}

// Poller reads discrete inputs and reports level changes.
//
// Thread Safety: Not safe for concurrent use. Scan and ParseCommand are
// called from the bridge's polling goroutine.
type Poller struct {
	bus      Bus
	selector SlaveSelector
	cfg      PollerConfig
	logger   Logger

	lastPoll time.Time
	next     int

	// levels[device][index] is the last reported level or unknownLevel.
	levels [][]int

	// failing tracks devices whose last poll failed, to log transitions once.
	failing []bool
}

// NewPoller creates a poller over a bus.
//
// Parameters:
//   - bus: Modbus client
//   - selector: Slave addressing for the bus (may be the same *Transport)
//   - cfg: Device chain layout
//   - logger: Optional logger (may be nil)
func NewPoller(bus Bus, selector SlaveSelector, cfg PollerConfig, logger Logger) *Poller {
	levels := make([][]int, cfg.Devices)
	for d := range levels {
		levels[d] = make([]int, cfg.InputsPerDevice)
		for i := range levels[d] {
			levels[d][i] = unknownLevel
		}
	}

	return &Poller{
		bus:      bus,
		selector: selector,
		cfg:      cfg,
		logger:   logger,
		levels:   levels,
		failing:  make([]bool, cfg.Devices),
	}
}

// Scan polls the next device in the chain if the poll interval has elapsed
// and invokes notify for every input whose level changed. The first
// successful read of a device reports every input.
//
// Returns:
//   - int: Number of changes reported
func (p *Poller) Scan(now time.Time, notify func(channel string, value int64)) int {
	if p.cfg.Devices == 0 || p.cfg.InputsPerDevice == 0 {
		return 0
	}
	if !p.lastPoll.IsZero() && now.Sub(p.lastPoll) < p.cfg.Interval {
		return 0
	}
	p.lastPoll = now

	device := p.next
	p.next = (p.next + 1) % p.cfg.Devices

	p.selector.SelectSlave(p.slaveID(device))
	data, err := p.bus.ReadDiscreteInputs(0, uint16(p.cfg.InputsPerDevice))
	if err != nil {
		if !p.failing[device] {
			p.failing[device] = true
			p.logWarn("modbus device poll failed",
				"device", device,
				"slave_id", p.slaveID(device),
				"error", err)
		}
		return 0
	}
	if p.failing[device] {
		p.failing[device] = false
		p.logInfo("modbus device responding", "device", device)
	}

	changed := 0
	for i := 0; i < p.cfg.InputsPerDevice; i++ {
		level := bit(data, i)
		if p.levels[device][i] == level {
			continue
		}
		p.levels[device][i] = level
		notify(channel.ModbusName(device, i), int64(level))
		changed++
	}
	return changed
}

// ParseCommand executes a command addressed to M<device>I<index>.
//
// A value of 0 or 1 writes the coil at the input's index; any other
// value is written to the holding register at that index.
//
// Returns:
//   - error: ErrInvalidChannel, ErrInvalidValue, or ErrBus wrapping the
//     transport error; nil once the device acknowledged the write
func (p *Poller) ParseCommand(name string, value int64) error {
	device, index, ok := channel.ParseModbusName(name)
	if !ok || device >= p.cfg.Devices || index >= p.cfg.InputsPerDevice {
		return fmt.Errorf("%w: %q", ErrInvalidChannel, name)
	}
	if value < 0 || value > 0xFFFF {
		return fmt.Errorf("%w: %d for %s", ErrInvalidValue, value, name)
	}

	p.selector.SelectSlave(p.slaveID(device))

	var err error
	switch value {
	case 0:
		_, err = p.bus.WriteSingleCoil(uint16(index), coilOff)
	case 1:
		_, err = p.bus.WriteSingleCoil(uint16(index), coilOn)
	default:
		_, err = p.bus.WriteSingleRegister(uint16(index), uint16(value))
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBus, name, err)
	}
	return nil
}

// slaveID maps a device number to its slave address. Configuration
// validation keeps the whole chain within 1..247.
func (p *Poller) slaveID(device int) byte {
	return byte(p.cfg.FirstSlaveID + device)
}

// bit returns input i from a packed discrete input response (LSB first).
func bit(data []byte, i int) int {
	if i/8 >= len(data) {
		return 0
	}
	return int(data[i/8]>>(uint(i)%8)) & 1
}

func (p *Poller) logInfo(msg string, keysAndValues ...any) {
	if p.logger != nil {
		p.logger.Info(msg, keysAndValues...)
	}
}

func (p *Poller) logWarn(msg string, keysAndValues ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, keysAndValues...)
	}
}
