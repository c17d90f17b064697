// Package api provides the read-only HTTP status API for plcbridge.
//
// It exposes infrastructure health, the bridge's connection snapshot and
// the channel table to operators and monitoring. Nothing here can change
// an output; commands only arrive over MQTT.
//
// Endpoints:
//
//	GET /api/v1/health           infrastructure checks (503 when degraded)
//	GET /api/v1/status           bridge connection and output snapshot
//	GET /api/v1/channels         channel table, optional ?kind= filter
//	GET /api/v1/channels/{name}  one channel and its last output value
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
