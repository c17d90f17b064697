// Package influxdb records channel state changes in InfluxDB v2.
//
// Every state the bridge publishes is also written as a point in the
// channel_state measurement, tagged with device, channel and kind, with
// an integer "value" field. Writes are batched and non-blocking.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteChannelState("plc-01", "R3", "relay", 1)
package influxdb
