package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// channelStateMeasurement is the measurement holding every state change.
const channelStateMeasurement = "channel_state"

// WriteChannelState records one published channel state.
//
// Parameters:
//   - device: Controller identifier (e.g. "plc-01")
//   - channel: Channel name (e.g. "R3", "M0I2")
//   - kind: Channel kind (e.g. "relay", "modbus_input")
//   - value: Signal value; 0/1 for binary channels
func (c *Client) WriteChannelState(device, channel, kind string, value int64) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(channelStatePoint(device, channel, kind, value, time.Now()))
}

// channelStatePoint builds the point for WriteChannelState.
func channelStatePoint(device, channel, kind string, value int64, ts time.Time) *write.Point {
	return write.NewPoint(
		channelStateMeasurement,
		map[string]string{
			"device":  device,
			"channel": channel,
			"kind":    kind,
		},
		map[string]interface{}{
			"value": value,
		},
		ts,
	)
}
