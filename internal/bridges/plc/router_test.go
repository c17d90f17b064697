package plc

import (
	"errors"
	"fmt"
	"testing"
)

func TestOnMessage_RelayAllChannels(t *testing.T) {
	h := connectedHarness(t)

	for n := 0; n < 16; n++ {
		name := fmt.Sprintf("R%d", n)
		if err := h.bridge.OnMessage("plc/plc-01/"+name+"/command", []byte("ON")); err != nil {
			t.Fatalf("OnMessage(%s ON) error = %v", name, err)
		}

		if got := h.pins.writes[22+n]; got != 1 {
			t.Errorf("%s: pin %d = %d, want 1", name, 22+n, got)
		}

		states := h.mqtt.publishedTo("plc/plc-01/" + name + "/state")
		if len(states) != 1 {
			t.Fatalf("%s: state publishes = %d, want 1", name, len(states))
		}
		if string(states[0].Payload) != "ON" || !states[0].Retained || states[0].QoS != 0 {
			t.Errorf("%s: state = %q retained=%v qos=%d", name, states[0].Payload, states[0].Retained, states[0].QoS)
		}
	}
}

func TestOnMessage_RelayOffAndLegacyPayload(t *testing.T) {
	h := connectedHarness(t)

	if err := h.bridge.OnMessage("plc/plc-01/R2/command", []byte("1")); err != nil {
		t.Fatalf("OnMessage(R2 1) error = %v", err)
	}
	if err := h.bridge.OnMessage("plc/plc-01/R2/command", []byte("OFF")); err != nil {
		t.Fatalf("OnMessage(R2 OFF) error = %v", err)
	}

	states := h.mqtt.publishedTo("plc/plc-01/R2/state")
	if len(states) != 2 || string(states[0].Payload) != "ON" || string(states[1].Payload) != "OFF" {
		t.Errorf("R2 states = %v, want [ON OFF]", states)
	}
	if v, _ := h.bridge.OutputState("R2"); v != Low {
		t.Errorf("OutputState(R2) = %v, want OFF", v)
	}
	if h.journal.states["R2"] != 0 {
		t.Errorf("journaled R2 = %d, want 0", h.journal.states["R2"])
	}
}

func TestOnMessage_DigitalOutputBanks(t *testing.T) {
	tests := []struct {
		name string
		pin  int
	}{
		{"D0", 2},
		{"D11", 13},
		{"D12", 42},
		{"D19", 49},
		{"D20", 77},
		{"D22", 79},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := connectedHarness(t)

			if err := h.bridge.OnMessage("plc/plc-01/"+tt.name+"/command", []byte("ON")); err != nil {
				t.Fatalf("OnMessage() error = %v", err)
			}
			if len(h.pins.order) != 1 || h.pins.order[0] != tt.pin {
				t.Errorf("pins written = %v, want [%d]", h.pins.order, tt.pin)
			}
			if len(h.mqtt.publishedTo("plc/plc-01/"+tt.name+"/state")) != 1 {
				t.Error("expected one state publish")
			}
		})
	}
}

func TestOnMessage_InvalidOutput(t *testing.T) {
	for _, name := range []string{"R16", "D23", "R", "Rx", "R-1", "X1", "A0"} {
		t.Run(name, func(t *testing.T) {
			h := connectedHarness(t)

			err := h.bridge.OnMessage("plc/plc-01/"+name+"/command", []byte("ON"))
			if !errors.Is(err, ErrInvalidOutput) {
				t.Errorf("OnMessage() error = %v, want ErrInvalidOutput", err)
			}
			if len(h.pins.order) != 0 {
				t.Errorf("pins written = %v, want none", h.pins.order)
			}

			logs := h.mqtt.publishedTo("plc/plc-01/log")
			if len(logs) != 1 || string(logs[0].Payload) != msgInvalidOutput {
				t.Fatalf("log publishes = %v, want %q", logs, msgInvalidOutput)
			}
			if logs[0].Retained {
				t.Error("log message should not be retained")
			}
		})
	}
}

func TestOnMessage_RejectsNonCanonicalNames(t *testing.T) {
	for _, name := range []string{"D05", "R03", "R00", "D007"} {
		t.Run(name, func(t *testing.T) {
			h := connectedHarness(t)

			err := h.bridge.OnMessage("plc/plc-01/"+name+"/command", []byte("ON"))
			if !errors.Is(err, ErrInvalidOutput) {
				t.Errorf("OnMessage() error = %v, want ErrInvalidOutput", err)
			}
			if len(h.pins.order) != 0 {
				t.Errorf("pins written = %v, want none", h.pins.order)
			}
			if states := h.mqtt.publishedTo("plc/plc-01/" + name + "/state"); len(states) != 0 {
				t.Errorf("state publishes = %v, want none", states)
			}
			if len(h.journal.states) != 0 {
				t.Errorf("journal = %v, want empty", h.journal.states)
			}
		})
	}
}

func TestOnMessage_InvalidValue(t *testing.T) {
	for _, payload := range []string{"", "on", "2", "-1", "TOGGLE"} {
		t.Run(payload, func(t *testing.T) {
			h := connectedHarness(t)

			err := h.bridge.OnMessage("plc/plc-01/R0/command", []byte(payload))
			if !errors.Is(err, ErrInvalidValue) {
				t.Errorf("OnMessage() error = %v, want ErrInvalidValue", err)
			}
			if len(h.pins.order) != 0 {
				t.Errorf("pins written = %v, want none", h.pins.order)
			}
			if len(h.mqtt.publishedTo("plc/plc-01/R0/state")) != 0 {
				t.Error("state published for rejected command")
			}
			if !h.logger.has(h.logger.warn, msgInvalidValue) {
				t.Errorf("warnings = %v, want %q", h.logger.warn, msgInvalidValue)
			}
		})
	}
}

func TestOnMessage_PinWriteFailure(t *testing.T) {
	h := connectedHarness(t)
	h.pins.err = errMock

	err := h.bridge.OnMessage("plc/plc-01/R0/command", []byte("ON"))
	if !errors.Is(err, ErrPinWrite) || !errors.Is(err, errMock) {
		t.Errorf("OnMessage() error = %v, want ErrPinWrite wrapping errMock", err)
	}
	if len(h.mqtt.publishedTo("plc/plc-01/R0/state")) != 0 {
		t.Error("state published after failed write")
	}
	if _, ok := h.bridge.OutputState("R0"); ok {
		t.Error("OutputState recorded after failed write")
	}
}

func TestOnMessage_IgnoresStatusEcho(t *testing.T) {
	h := connectedHarness(t)

	for _, topic := range []string{
		"plc/plc-01/R0/state",
		"plc/plc-01/log",
		"plc/plc-02/R0/command",
	} {
		if err := h.bridge.OnMessage(topic, []byte("ON")); err != nil {
			t.Errorf("OnMessage(%q) error = %v, want nil", topic, err)
		}
	}

	if len(h.pins.order) != 0 {
		t.Errorf("pins written = %v, want none", h.pins.order)
	}
	if len(h.mqtt.GetPublished()) != 0 {
		t.Errorf("published = %v, want none", h.mqtt.GetPublished())
	}
}

func TestOnMessage_ModbusSuccess(t *testing.T) {
	h := connectedHarness(t)

	if err := h.bridge.OnMessage("plc/plc-01/M0I1/command", []byte("ON")); err != nil {
		t.Fatalf("OnMessage() error = %v", err)
	}

	if len(h.modbus.calls) != 1 || h.modbus.calls[0] != "M0I1" {
		t.Errorf("modbus calls = %v, want [M0I1]", h.modbus.calls)
	}

	published := h.mqtt.GetPublished()
	if len(published) != 2 {
		t.Fatalf("publishes = %d, want 2 (state and discovery)", len(published))
	}
	if published[0].Topic != "plc/plc-01/M0I1/state" || string(published[0].Payload) != "ON" {
		t.Errorf("first publish = %s %q", published[0].Topic, published[0].Payload)
	}
	if published[1].Topic != "homeassistant/binary_sensor/M0I1/config" {
		t.Errorf("second publish topic = %s", published[1].Topic)
	}
	if len(h.pins.order) != 0 {
		t.Errorf("local pins written = %v, want none", h.pins.order)
	}
}

func TestOnMessage_ModbusRegisterValue(t *testing.T) {
	h := connectedHarness(t)

	if err := h.bridge.OnMessage("plc/plc-01/M1I0/command", []byte("1234")); err != nil {
		t.Fatalf("OnMessage() error = %v", err)
	}
	states := h.mqtt.publishedTo("plc/plc-01/M1I0/state")
	if len(states) != 1 || string(states[0].Payload) != "1234" {
		t.Errorf("states = %v, want one \"1234\"", states)
	}
}

func TestOnMessage_ModbusFailure(t *testing.T) {
	h := connectedHarness(t)
	h.modbus.err = errMock

	err := h.bridge.OnMessage("plc/plc-01/M0I1/command", []byte("ON"))
	if !errors.Is(err, ErrModbusCommand) {
		t.Errorf("OnMessage() error = %v, want ErrModbusCommand", err)
	}
	if n := len(h.mqtt.publishedTo("plc/plc-01/M0I1/state")); n != 0 {
		t.Errorf("state publishes = %d, want 0", n)
	}
	if n := len(h.mqtt.publishedTo("homeassistant/binary_sensor/M0I1/config")); n != 0 {
		t.Errorf("discovery publishes = %d, want 0", n)
	}
}

func TestOnMessage_ModbusWithoutCommander(t *testing.T) {
	h := connectedHarness(t)
	h.bridge.modbus = nil

	err := h.bridge.OnMessage("plc/plc-01/M0I0/command", []byte("ON"))
	if !errors.Is(err, ErrInvalidOutput) {
		t.Errorf("OnMessage() error = %v, want ErrInvalidOutput", err)
	}
}

func TestOnMessage_WhileDisconnected(t *testing.T) {
	h := newHarness(t)

	if err := h.bridge.OnMessage("plc/plc-01/R1/command", []byte("ON")); err != nil {
		t.Fatalf("OnMessage() error = %v", err)
	}
	if h.pins.writes[23] != 1 {
		t.Errorf("pin 23 = %d, want 1", h.pins.writes[23])
	}
	if len(h.mqtt.GetPublished()) != 0 {
		t.Errorf("published while disconnected: %v", h.mqtt.GetPublished())
	}
	if len(h.recorder.points) != 1 || h.recorder.points[0] != "plc-01/R1/relay=ON" {
		t.Errorf("recorder = %v", h.recorder.points)
	}
}
