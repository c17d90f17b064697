package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when telemetry is switched off.
	// Callers treat it as "run without a recorder", not as a failure.
	ErrDisabled = errors.New("influxdb: telemetry disabled")

	// ErrConnectionFailed means the startup ping did not succeed.
	ErrConnectionFailed = errors.New("influxdb: server unreachable")

	// ErrNotConnected is reported by HealthCheck on a closed or nil client.
	ErrNotConnected = errors.New("influxdb: client closed")

	// ErrWriteFailed wraps a batch rejected by the background writer.
	ErrWriteFailed = errors.New("influxdb: channel state batch rejected")
)
