package plc

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/plcbridge/internal/channel"
	"github.com/nerrad567/plcbridge/internal/infrastructure/config"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	published     []mockPublish
	subscriptions []mockSubscription
	connected     bool
	connectErr    error
	subscribeErr  error
	connects      int

	// connectDelay is the number of polls an attempt stays in flight.
	connectDelay int
	inFlight     bool
	remaining    int
	handlers      map[string]func(topic string, payload []byte) error
	inbox         []mockPublish
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

type mockSubscription struct {
	Topic string
	QoS   byte
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		handlers: make(map[string]func(topic string, payload []byte) error),
	}
}

func (m *MockMQTTClient) Connect() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.inFlight {
		m.connects++
		m.inFlight = true
		m.remaining = m.connectDelay
	}
	if m.remaining > 0 {
		m.remaining--
		return false, nil
	}
	m.inFlight = false
	if m.connectErr != nil {
		return true, m.connectErr
	}
	m.connected = true
	return true, nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  payload,
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return m.subscribeErr
	}
	m.subscriptions = append(m.subscriptions, mockSubscription{Topic: topic, QoS: qos})
	m.handlers[topic] = handler
	return nil
}

// Loop delivers queued messages to the handler registered for the
// device-wide filter, mirroring the real client's inbox.
func (m *MockMQTTClient) Loop() int {
	m.mu.Lock()
	queued := m.inbox
	m.inbox = nil
	var handler func(string, []byte) error
	for _, h := range m.handlers {
		handler = h
	}
	m.mu.Unlock()

	if handler == nil {
		return 0
	}
	for _, msg := range queued {
		_ = handler(msg.Topic, msg.Payload)
	}
	return len(queued)
}

// Queue adds an inbound message for the next Loop.
func (m *MockMQTTClient) Queue(topic string, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbox = append(m.inbox, mockPublish{Topic: topic, Payload: payload})
}

func (m *MockMQTTClient) Drop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPublish(nil), m.published...)
}

func (m *MockMQTTClient) GetSubscriptions() []mockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscriptions
}

func (m *MockMQTTClient) Connects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connects
}

func (m *MockMQTTClient) ClearPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = nil
}

// publishedTo returns messages sent to one topic.
func (m *MockMQTTClient) publishedTo(topic string) []mockPublish {
	var out []mockPublish
	for _, p := range m.GetPublished() {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

// MockPins records pin writes.
type MockPins struct {
	writes map[int]int
	order  []int
	err    error
}

func NewMockPins() *MockPins {
	return &MockPins{writes: make(map[int]int)}
}

func (p *MockPins) WritePin(pin int, value int) error {
	if p.err != nil {
		return p.err
	}
	p.writes[pin] = value
	p.order = append(p.order, pin)
	return nil
}

// MockLink returns a fixed readiness error.
type MockLink struct {
	err   error
	addr  string
	calls int
}

func (l *MockLink) Ready() error {
	l.calls++
	return l.err
}

func (l *MockLink) Address() string {
	if l.err != nil {
		return ""
	}
	return l.addr
}

// MockModbus records Modbus commands.
type MockModbus struct {
	calls []string
	err   error
}

func (m *MockModbus) ParseCommand(name string, value int64) error {
	m.calls = append(m.calls, name)
	return m.err
}

// MockScanner reports queued changes once.
type MockScanner struct {
	pending []mockChange
	scans   int
}

type mockChange struct {
	name  string
	value int64
}

func (s *MockScanner) Scan(_ time.Time, notify func(string, int64)) int {
	s.scans++
	n := len(s.pending)
	for _, c := range s.pending {
		notify(c.name, c.value)
	}
	s.pending = nil
	return n
}

// MockJournal is an in-memory StateStore.
type MockJournal struct {
	states  map[string]int64
	loadErr error
}

func NewMockJournal() *MockJournal {
	return &MockJournal{states: make(map[string]int64)}
}

func (j *MockJournal) Save(_ context.Context, name string, value int64) error {
	j.states[name] = value
	return nil
}

func (j *MockJournal) Load(context.Context) (map[string]int64, error) {
	if j.loadErr != nil {
		return nil, j.loadErr
	}
	out := make(map[string]int64, len(j.states))
	for k, v := range j.states {
		out[k] = v
	}
	return out, nil
}

// MockRecorder records telemetry writes.
type MockRecorder struct {
	points []string
}

func (r *MockRecorder) WriteChannelState(device, name, kind string, value int64) {
	r.points = append(r.points, device+"/"+name+"/"+kind+"="+string(RenderValue(Signal(value))))
}

// MockLogger captures log messages by level.
type MockLogger struct {
	debug []string
	info  []string
	warn  []string
	error []string

	// infoArgs holds the key/value pairs of the latest Info call per message.
	infoArgs map[string][]any
}

func (l *MockLogger) Debug(msg string, _ ...any) { l.debug = append(l.debug, msg) }

func (l *MockLogger) Info(msg string, kv ...any) {
	l.info = append(l.info, msg)
	if l.infoArgs == nil {
		l.infoArgs = make(map[string][]any)
	}
	l.infoArgs[msg] = kv
}
func (l *MockLogger) Warn(msg string, _ ...any)  { l.warn = append(l.warn, msg) }
func (l *MockLogger) Error(msg string, _ ...any) { l.error = append(l.error, msg) }

func (l *MockLogger) has(level []string, msg string) bool {
	for _, m := range level {
		if m == msg {
			return true
		}
	}
	return false
}

var errMock = errors.New("mock failure")

// testMAC is the hardware address used for discovery IDs.
var testMAC = net.HardwareAddr{0xde, 0xad, 0xbe, 0xef, 0xfe, 0xed}

func testTable(t *testing.T) *channel.Table {
	t.Helper()

	table, err := channel.NewTable(&config.Config{
		IO: config.IOConfig{
			RelayCount:   16,
			RelayBasePin: 22,
			OutputBanks: []config.OutputBankConfig{
				{Start: 0, End: 12, BasePin: 2},
				{Start: 12, End: 20, BasePin: 42},
				{Start: 20, End: 23, BasePin: 77},
			},
			Inputs: []config.InputConfig{
				{Name: "A0", Pin: 54},
				{Name: "I16", Pin: 18, PullUp: true},
			},
		},
		Modbus: config.ModbusConfig{
			Enabled:         true,
			DeviceCount:     2,
			InputsPerDevice: 2,
		},
	})
	if err != nil {
		t.Fatalf("channel.NewTable() error = %v", err)
	}
	return table
}

// testHarness bundles a bridge and its mocks.
type testHarness struct {
	bridge   *Bridge
	mqtt     *MockMQTTClient
	pins     *MockPins
	link     *MockLink
	modbus   *MockModbus
	scanner  *MockScanner
	journal  *MockJournal
	recorder *MockRecorder
	logger   *MockLogger
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	h := &testHarness{
		mqtt:     NewMockMQTTClient(),
		pins:     NewMockPins(),
		link:     &MockLink{},
		modbus:   &MockModbus{},
		scanner:  &MockScanner{},
		journal:  NewMockJournal(),
		recorder: &MockRecorder{},
		logger:   &MockLogger{},
	}

	b, err := NewBridge(Options{
		Table:             testTable(t),
		RootTopic:         "plc",
		DeviceID:          "plc-01",
		MAC:               testMAC,
		Version:           "test",
		ReconnectDebounce: 2 * time.Second,
		MQTTClient:        h.mqtt,
		Pins:              h.pins,
		Link:              h.link,
		Modbus:            h.modbus,
		Scanners:          []InputScanner{h.scanner},
		Journal:           h.journal,
		Recorder:          h.recorder,
		Logger:            h.logger,
	})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	h.bridge = b
	return h
}

// connected returns a harness whose bridge completed its first connect,
// with the connect-time publishes cleared.
func connectedHarness(t *testing.T) *testHarness {
	t.Helper()

	h := newHarness(t)
	h.bridge.Tick(time.Unix(0, 0))
	if !h.bridge.Connected() {
		t.Fatal("bridge did not connect on first tick")
	}
	h.mqtt.ClearPublished()
	return h
}
