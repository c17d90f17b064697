package plc

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync/atomic"
	"time"

	"github.com/nerrad567/plcbridge/internal/channel"
	"github.com/nerrad567/plcbridge/internal/hardware/network"
)

// Bridge operation constants.
const (
	// qos is the only delivery level used on the wire (at most once).
	qos byte = 0

	// journalTimeout bounds a single journal write from the polling loop.
	journalTimeout = 250 * time.Millisecond

	// DefaultReconnectDebounce is the minimum spacing between connect attempts.
	DefaultReconnectDebounce = 2 * time.Second
)

// Bridge translates between MQTT topics and the controller's discrete I/O.
//
// It is the single owner of connection state and the channel table. All
// work happens inside Tick, which the caller invokes from one polling
// goroutine:
//
//  1. Connection supervision (link gate, debounced connect, discovery)
//  2. Dispatch of queued inbound messages to the command router
//  3. Input scanning, which feeds the input change notifier
//
// Thread Safety: Not safe for concurrent use. Every method except Status
// must be called from the polling goroutine.
type Bridge struct {
	table    *channel.Table
	topics   Topics
	deviceID string
	version  string

	// uniquePrefix is the lower-case hex form of the hardware address.
	uniquePrefix string

	mqtt     MQTTClient
	link     Link
	pins     PinWriter
	modbus   ModbusCommander
	scanners []InputScanner
	journal  StateStore
	recorder StateRecorder
	logger   Logger

	// Connection state.
	debounce    time.Duration
	lastAttempt time.Time
	attempts    int
	connecting  bool
	connected   bool
	subscribed  bool
	linkDown    bool
	halted      bool

	// outputs holds the last value written to each relay and digital output.
	outputs      map[string]Signal
	outputsDirty bool

	// status is the snapshot served to readers outside the polling goroutine.
	status atomic.Pointer[Status]

	// notify is handed to scanners; built once so Tick does not allocate.
	notify func(channel string, value int64)
}

// MQTTClient is the messaging transport driven by the bridge.
// It is satisfied by *mqtt.Client.
type MQTTClient interface {
	// Connect starts one connection attempt, or polls the attempt in
	// flight. It must not block; done is false until the attempt ends.
	Connect() (done bool, err error)

	// IsConnected reports whether the transport currently has a session.
	IsConnected() bool

	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic filter.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error

	// Loop delivers queued inbound messages to their handlers.
	Loop() int
}

// Link gates messaging on the network link.
// Ready returns network.ErrNoHardware when the link can never come up.
// Address is the local address seen by the last successful Ready.
type Link interface {
	Ready() error
	Address() string
}

// PinWriter drives relay and digital output pins.
type PinWriter interface {
	WritePin(pin int, value int) error
}

// ModbusCommander is the Modbus collaborator's command contract.
type ModbusCommander interface {
	ParseCommand(channel string, value int64) error
}

// InputScanner reports input level changes. Scan must not block and
// invokes notify once per changed input.
type InputScanner interface {
	Scan(now time.Time, notify func(channel string, value int64)) int
}

// StateStore persists the last commanded output values across restarts.
type StateStore interface {
	Save(ctx context.Context, channel string, value int64) error
	Load(ctx context.Context) (map[string]int64, error)
}

// StateRecorder receives every published state for telemetry.
type StateRecorder interface {
	WriteChannelState(device, channel, kind string, value int64)
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options holds the collaborators and settings for a bridge.
type Options struct {
	// Table is the static channel inventory.
	Table *channel.Table

	// RootTopic and DeviceID form the first two topic segments.
	RootTopic string
	DeviceID  string

	// MAC derives the discovery unique IDs.
	MAC net.HardwareAddr

	// Version is announced in discovery device metadata.
	Version string

	// ReconnectDebounce is the minimum time between connect attempts.
	// Zero means DefaultReconnectDebounce.
	ReconnectDebounce time.Duration

	// MQTTClient is the messaging transport.
	MQTTClient MQTTClient

	// Pins drives relay and digital outputs.
	Pins PinWriter

	// Link is optional. If nil the link is always considered ready.
	Link Link

	// Modbus is optional. If nil, Modbus commands are rejected.
	Modbus ModbusCommander

	// Scanners are ticked in order after message dispatch.
	Scanners []InputScanner

	// Journal is optional output state persistence.
	Journal StateStore

	// Recorder is optional state telemetry.
	Recorder StateRecorder

	// Logger is an optional structured logger.
	Logger Logger
}

// NewBridge creates a bridge. The first Tick starts connection supervision.
func NewBridge(opts Options) (*Bridge, error) {
	if opts.Table == nil {
		return nil, fmt.Errorf("channel table is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Pins == nil {
		return nil, fmt.Errorf("pin writer is required")
	}
	if opts.RootTopic == "" || opts.DeviceID == "" {
		return nil, fmt.Errorf("root topic and device ID are required")
	}
	if len(opts.MAC) == 0 {
		return nil, fmt.Errorf("hardware address is required")
	}

	debounce := opts.ReconnectDebounce
	if debounce <= 0 {
		debounce = DefaultReconnectDebounce
	}

	b := &Bridge{
		table:        opts.Table,
		topics:       NewTopics(opts.RootTopic, opts.DeviceID, opts.Table.LongestName()),
		deviceID:     opts.DeviceID,
		version:      opts.Version,
		uniquePrefix: hex.EncodeToString(opts.MAC),
		mqtt:         opts.MQTTClient,
		link:         opts.Link,
		pins:         opts.Pins,
		modbus:       opts.Modbus,
		scanners:     opts.Scanners,
		journal:      opts.Journal,
		recorder:     opts.Recorder,
		logger:       opts.Logger,
		debounce:     debounce,
		outputs:      make(map[string]Signal),
	}
	b.notify = func(name string, value int64) {
		b.OnInputChange(name, Signal(value))
	}
	b.snapshot()

	return b, nil
}

// Tick runs one iteration of the polling loop.
//
// Connection maintenance runs first, then queued inbound messages are
// dispatched (only while connected), then every input scanner runs. Input
// scanning continues while the broker or link is down.
func (b *Bridge) Tick(now time.Time) {
	if b.supervise(now) {
		b.mqtt.Loop()
	}

	for _, s := range b.scanners {
		s.Scan(now, b.notify)
	}

	b.snapshot()
}

// Connected reports whether the supervisor considers the session up.
func (b *Bridge) Connected() bool { return b.connected }

// Halted reports whether networking stopped because the link hardware is absent.
func (b *Bridge) Halted() bool { return b.halted }

// Topics returns the bridge's topic codec.
func (b *Bridge) Topics() Topics { return b.topics }

// OutputState returns the last value written to an output channel.
func (b *Bridge) OutputState(name string) (Signal, bool) {
	v, ok := b.outputs[name]
	return v, ok
}

// RestoreOutputs re-applies journaled output values to the pins.
//
// It is meant to run once before the first Tick. Nothing is published;
// the restored values are republished after discovery on connect.
//
// Returns:
//   - error: Only if the journal cannot be read; individual pin failures are logged
func (b *Bridge) RestoreOutputs(ctx context.Context) error {
	if b.journal == nil {
		return nil
	}

	states, err := b.journal.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading output journal: %w", err)
	}

	names := make([]string, 0, len(states))
	for name := range states {
		names = append(names, name)
	}
	sort.Strings(names)

	restored := 0
	for _, name := range names {
		value := Signal(states[name])
		ch, ok := b.table.Lookup(name)
		if !ok || !ch.Kind.IsOutput() || !value.IsBinary() {
			b.logWarn("skipping journaled state", "channel", name, "value", int64(value))
			continue
		}
		if err := b.pins.WritePin(ch.Address, int(value)); err != nil {
			b.logError("failed to restore output", err, "channel", name)
			continue
		}
		b.outputs[name] = value
		b.outputsDirty = true
		restored++
	}
	b.snapshot()

	b.logInfo("restored outputs from journal", "count", restored)
	return nil
}

// report logs a diagnostic and, while connected, publishes it to the log topic.
func (b *Bridge) report(msg string, keysAndValues ...any) {
	b.logInfo(msg, keysAndValues...)
	b.publishLog(msg)
}

// reject logs a dropped command and publishes the reason to the log topic.
func (b *Bridge) reject(msg string, err error, keysAndValues ...any) {
	b.logWarn(msg, append([]any{"error", err}, keysAndValues...)...)
	b.publishLog(msg)
}

func (b *Bridge) publishLog(msg string) {
	if !b.connected {
		return
	}
	if err := b.mqtt.Publish(b.topics.Log(), []byte(msg), qos, false); err != nil {
		b.logDebug("failed to publish log message", "error", err)
	}
}

// publishState publishes a retained state message and records it.
func (b *Bridge) publishState(name string, kind channel.Kind, value Signal) error {
	topic, err := b.topics.Encode(name, MessageState)
	if err != nil {
		return err
	}

	if b.recorder != nil {
		b.recorder.WriteChannelState(b.deviceID, name, kind.String(), int64(value))
	}

	if !b.connected {
		b.logDebug("state not published, broker disconnected", "channel", name, "value", value)
		return nil
	}

	if err := b.mqtt.Publish(topic, RenderValue(value), qos, true); err != nil {
		return fmt.Errorf("publishing state for %s: %w", name, err)
	}
	return nil
}

// saveState journals an output value. Failures are logged only.
func (b *Bridge) saveState(name string, value Signal) {
	if b.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := b.journal.Save(ctx, name, int64(value)); err != nil {
		b.logError("failed to journal output state", err, "channel", name)
	}
}

// isHardwareAbsent reports whether a link error means networking can never start.
func isHardwareAbsent(err error) bool {
	return errors.Is(err, network.ErrNoHardware)
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if logger is set.
func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
	}
}

// logDebug logs a debug message if logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, keysAndValues...)
	}
}
