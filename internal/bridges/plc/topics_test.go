package plc

import (
	"errors"
	"strings"
	"testing"
)

func TestTopics_Encode(t *testing.T) {
	topics := NewTopics("plc", "plc-01", 4)

	got, err := topics.Encode("R3", MessageState)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if got != "plc/plc-01/R3/state" {
		t.Errorf("Encode() = %q", got)
	}

	got, err = topics.Encode("M0I1", MessageCommand)
	if err != nil {
		t.Fatalf("Encode(longest) error = %v", err)
	}
	if got != "plc/plc-01/M0I1/command" {
		t.Errorf("Encode(longest) = %q", got)
	}
	if len(got) != topics.maxTopic {
		t.Errorf("longest topic length = %d, bound = %d", len(got), topics.maxTopic)
	}
}

func TestTopics_EncodeTooLong(t *testing.T) {
	topics := NewTopics("plc", "plc-01", 4)

	for _, name := range []string{"", "VERYLONGNAME"} {
		if _, err := topics.Encode(name, MessageCommand); !errors.Is(err, ErrTopicTooLong) {
			t.Errorf("Encode(%q) error = %v, want ErrTopicTooLong", name, err)
		}
		if _, err := topics.Discovery(name, true); !errors.Is(err, ErrTopicTooLong) {
			t.Errorf("Discovery(%q) error = %v, want ErrTopicTooLong", name, err)
		}
	}
}

func TestTopics_BoundCoversLogTopic(t *testing.T) {
	// With one-character channel names the log topic is the longest.
	topics := NewTopics("p", "d", 1)
	if topics.maxTopic < len(topics.Log()) {
		t.Errorf("bound = %d, shorter than log topic %q", topics.maxTopic, topics.Log())
	}
}

func TestTopics_Fixed(t *testing.T) {
	topics := NewTopics("plc", "plc-01", 4)

	if got := topics.Subscription(); got != "plc/plc-01/#" {
		t.Errorf("Subscription() = %q", got)
	}
	if got := topics.Log(); got != "plc/plc-01/log" {
		t.Errorf("Log() = %q", got)
	}
}

func TestTopics_Discovery(t *testing.T) {
	topics := NewTopics("plc", "plc-01", 4)

	got, err := topics.Discovery("R0", true)
	if err != nil || got != "homeassistant/switch/R0/config" {
		t.Errorf("Discovery(R0, output) = %q, %v", got, err)
	}

	got, err = topics.Discovery("M1I1", false)
	if err != nil || got != "homeassistant/binary_sensor/M1I1/config" {
		t.Errorf("Discovery(M1I1, input) = %q, %v", got, err)
	}
}

func TestTopics_DecodeCommand(t *testing.T) {
	topics := NewTopics("plc", "plc-01", 4)

	tests := []struct {
		topic  string
		want   string
		wantOK bool
	}{
		{"plc/plc-01/R0/command", "R0", true},
		{"plc/plc-01/M1I0/command", "M1I0", true},
		{"plc/plc-01/R0/state", "", false},
		{"plc/plc-01/log", "", false},
		{"plc/plc-02/R0/command", "", false},
		{"plc/plc-01//command", "", false},
		{"plc/plc-01/a/b/command", "", false},
		{"other/plc-01/R0/command", "", false},
	}

	for _, tt := range tests {
		t.Run(strings.ReplaceAll(tt.topic, "/", "_"), func(t *testing.T) {
			got, ok := topics.DecodeCommand(tt.topic)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("DecodeCommand(%q) = %q, %v; want %q, %v", tt.topic, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestTopics_EncodeDecodeRoundTrip(t *testing.T) {
	topics := NewTopics("plc", "plc-01", 4)

	for _, name := range []string{"R0", "R15", "D22", "A0", "M0I1"} {
		topic, err := topics.Encode(name, MessageCommand)
		if err != nil {
			t.Fatalf("Encode(%q) error = %v", name, err)
		}
		got, ok := topics.DecodeCommand(topic)
		if !ok || got != name {
			t.Errorf("DecodeCommand(Encode(%q)) = %q, %v", name, got, ok)
		}
	}
}
