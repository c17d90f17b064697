package plc

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/plcbridge/internal/channel"
)

// discoveryManufacturer is announced in the device block of every record.
const discoveryManufacturer = "plcbridge"

// DiscoveryConfig is the retained payload announcing one channel to a
// Home Assistant style auto-discovery consumer.
type DiscoveryConfig struct {
	Name         string          `json:"name"`
	UniqueID     string          `json:"unique_id"`
	CommandTopic string          `json:"command_topic"`
	StateTopic   string          `json:"state_topic"`
	PayloadOn    string          `json:"payload_on"`
	PayloadOff   string          `json:"payload_off"`
	Retain       bool            `json:"retain,omitempty"`
	Device       DiscoveryDevice `json:"device"`
}

// DiscoveryDevice groups all channels under one device in the consumer.
type DiscoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// Announce publishes a retained discovery record for every channel.
//
// The order is fixed: Modbus inputs (device-major, index-minor), local
// inputs, relays, then digital outputs. Records are derived only from the
// static table and configuration, so repeated announcements are
// byte-identical.
//
// Returns:
//   - int: Number of records published
func (b *Bridge) Announce() int {
	published := 0
	groups := [][]channel.Channel{
		b.table.ModbusInputs(),
		b.table.Inputs(),
		b.table.Relays(),
		b.table.Outputs(),
	}

	for _, group := range groups {
		for _, ch := range group {
			if err := b.announceChannel(ch); err != nil {
				b.logWarn("failed to publish discovery", "channel", ch.Name, "error", err)
				continue
			}
			published++
		}
	}

	b.logInfo("discovery published", "channels", published)
	return published
}

// announceChannel publishes the discovery record for one channel.
func (b *Bridge) announceChannel(ch channel.Channel) error {
	topic, payload, err := b.discoveryRecord(ch)
	if err != nil {
		return err
	}
	return b.mqtt.Publish(topic, payload, qos, true)
}

// discoveryRecord builds the topic and payload announcing ch.
func (b *Bridge) discoveryRecord(ch channel.Channel) (string, []byte, error) {
	isOutput := ch.Kind.IsOutput()

	topic, err := b.topics.Discovery(ch.Name, isOutput)
	if err != nil {
		return "", nil, err
	}
	commandTopic, err := b.topics.Encode(ch.Name, MessageCommand)
	if err != nil {
		return "", nil, err
	}
	stateTopic, err := b.topics.Encode(ch.Name, MessageState)
	if err != nil {
		return "", nil, err
	}

	cfg := DiscoveryConfig{
		Name:         ch.Name,
		UniqueID:     b.uniquePrefix + "_" + ch.Name,
		CommandTopic: commandTopic,
		StateTopic:   stateTopic,
		PayloadOn:    payloadOn,
		PayloadOff:   payloadOff,
		Retain:       isOutput,
		Device: DiscoveryDevice{
			Identifiers:  []string{b.uniquePrefix},
			Name:         b.deviceID,
			Manufacturer: discoveryManufacturer,
			SWVersion:    b.version,
		},
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return "", nil, fmt.Errorf("marshal discovery for %s: %w", ch.Name, err)
	}
	return topic, payload, nil
}
