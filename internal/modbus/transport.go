package modbus

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/goburrow/modbus"

	"github.com/nerrad567/plcbridge/internal/infrastructure/config"
)

// Serial line defaults for RTU mode.
const (
	rtuDataBits = 8
	rtuStopBits = 1
	rtuParity   = "N"
)

// Bus is the subset of a Modbus client the poller uses.
// It is satisfied by modbus.Client from github.com/goburrow/modbus.
type Bus interface {
	ReadDiscreteInputs(address, quantity uint16) ([]byte, error)
	WriteSingleCoil(address, value uint16) ([]byte, error)
	WriteSingleRegister(address, value uint16) ([]byte, error)
}

// Transport is a Modbus client bound to one TCP endpoint or serial line.
// The underlying handler connects lazily on the first transaction.
type Transport struct {
	Bus

	closer      io.Closer
	selectSlave func(id byte)
}

// Dial builds a transport from configuration without connecting.
//
// Returns:
//   - *Transport: Ready for transactions
//   - error: ErrUnsupportedMode if the mode is neither tcp nor rtu
func Dial(cfg config.ModbusConfig) (*Transport, error) {
	timeout := cfg.GetTimeout()
	slave := byte(cfg.FirstSlaveID)

	switch cfg.Mode {
	case "tcp", "":
		h := modbus.NewTCPClientHandler(net.JoinHostPort(cfg.TCPHost, strconv.Itoa(cfg.TCPPort)))
		h.Timeout = timeout
		h.IdleTimeout = idleTimeout(cfg)
		h.SlaveId = slave
		return &Transport{
			Bus:         modbus.NewClient(h),
			closer:      h,
			selectSlave: func(id byte) { h.SlaveId = id },
		}, nil

	case "rtu":
		h := modbus.NewRTUClientHandler(cfg.RTUDevice)
		h.BaudRate = cfg.RTUBaud
		h.DataBits = rtuDataBits
		h.StopBits = rtuStopBits
		h.Parity = rtuParity
		h.Timeout = timeout
		h.SlaveId = slave
		return &Transport{
			Bus:         modbus.NewClient(h),
			closer:      h,
			selectSlave: func(id byte) { h.SlaveId = id },
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, cfg.Mode)
	}
}

// SelectSlave addresses subsequent transactions to a slave ID.
func (t *Transport) SelectSlave(id byte) {
	t.selectSlave(id)
}

// Close releases the TCP connection or serial port.
func (t *Transport) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}

// idleTimeout keeps a TCP connection open across several poll rounds.
func idleTimeout(cfg config.ModbusConfig) time.Duration {
	return 10 * cfg.GetPollInterval()
}
