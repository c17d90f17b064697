package plc

import (
	"fmt"
	"strings"
)

// Message types carried in the last topic segment.
const (
	MessageCommand = "command"
	MessageState   = "state"
)

// Topic segments.
const (
	logSegment       = "log"
	wildcardSegment  = "#"
	discoveryPrefix  = "homeassistant"
	discoverySuffix  = "config"
	componentSwitch  = "switch"
	componentBinary  = "binary_sensor"
	longestComponent = componentBinary
	longestMessage   = MessageCommand
)

// Topics is the only place topic strings are built or taken apart.
//
// Per-channel topics follow {root}/{device}/{channel}/{command|state}, the
// diagnostics topic is {root}/{device}/log, and discovery topics follow
// homeassistant/{switch|binary_sensor}/{channel}/config.
//
// The maximum lengths are computed once from the configured root and device
// segments and the longest channel name, so any name that does not fit is
// rejected rather than producing a truncated topic.
type Topics struct {
	prefix       string
	longestName  int
	maxTopic     int
	maxDiscovery int
}

// NewTopics builds the codec for a root topic and device identifier.
//
// Parameters:
//   - root: First topic segment (e.g. "plc")
//   - device: Second topic segment (e.g. "plc-01")
//   - longestName: Length of the longest channel name in the table
func NewTopics(root, device string, longestName int) Topics {
	prefix := root + "/" + device + "/"

	perChannel := len(prefix) + longestName + 1 + len(longestMessage)
	diagnostics := len(prefix) + len(logSegment)

	return Topics{
		prefix:       prefix,
		longestName:  longestName,
		maxTopic:     max(perChannel, diagnostics),
		maxDiscovery: len(discoveryPrefix) + 1 + len(longestComponent) + 1 + longestName + 1 + len(discoverySuffix),
	}
}

// Subscription returns the filter covering every topic under this device.
func (t Topics) Subscription() string { return t.prefix + wildcardSegment }

// Log returns the diagnostics topic.
func (t Topics) Log() string { return t.prefix + logSegment }

// Encode builds {root}/{device}/{channel}/{messageType}.
//
// Returns:
//   - string: The topic
//   - error: ErrTopicTooLong if the result exceeds the configured bound
func (t Topics) Encode(channel, messageType string) (string, error) {
	n := len(t.prefix) + len(channel) + 1 + len(messageType)
	if channel == "" || n > t.maxTopic {
		return "", fmt.Errorf("%w: %q/%q", ErrTopicTooLong, channel, messageType)
	}

	var sb strings.Builder
	sb.Grow(n)
	sb.WriteString(t.prefix)
	sb.WriteString(channel)
	sb.WriteByte('/')
	sb.WriteString(messageType)
	return sb.String(), nil
}

// Discovery builds homeassistant/{switch|binary_sensor}/{channel}/config.
// Outputs are announced as switches and inputs as binary sensors.
func (t Topics) Discovery(channel string, isOutput bool) (string, error) {
	component := componentBinary
	if isOutput {
		component = componentSwitch
	}

	n := len(discoveryPrefix) + 1 + len(component) + 1 + len(channel) + 1 + len(discoverySuffix)
	if channel == "" || n > t.maxDiscovery {
		return "", fmt.Errorf("%w: discovery %q", ErrTopicTooLong, channel)
	}

	var sb strings.Builder
	sb.Grow(n)
	sb.WriteString(discoveryPrefix)
	sb.WriteByte('/')
	sb.WriteString(component)
	sb.WriteByte('/')
	sb.WriteString(channel)
	sb.WriteByte('/')
	sb.WriteString(discoverySuffix)
	return sb.String(), nil
}

// DecodeCommand extracts the channel name from a command topic.
//
// A topic that is outside this device, does not end in the command
// suffix, or has anything other than a single channel segment is not a
// command. That is the normal case for state echoes and log traffic and
// is reported with ok == false rather than an error.
func (t Topics) DecodeCommand(topic string) (channel string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.prefix)
	if !found {
		return "", false
	}
	channel, found = strings.CutSuffix(rest, "/"+MessageCommand)
	if !found || channel == "" || strings.Contains(channel, "/") {
		return "", false
	}
	return channel, true
}
