// Package plc bridges MQTT topics to a controller's discrete I/O.
//
// Commands arrive on {root}/{device}/{channel}/command with payload "ON",
// "OFF" or decimal digits. Relays (R<n>) and digital outputs (D<n>) are
// written through a PinWriter; Modbus channels (M<device>I<index>) are
// handed to the Modbus collaborator. Every successful write is published
// retained on {root}/{device}/{channel}/state as "ON" or "OFF".
//
// # Polling model
//
// The bridge owns no goroutines. The caller invokes Tick from a single
// polling loop; each tick supervises the broker connection, dispatches
// queued inbound messages, then runs the input scanners. On every
// (re)connect the bridge publishes a retained Home Assistant discovery
// record per channel, republishes known output states and subscribes to
// {root}/{device}/#.
//
// # Diagnostics
//
// Rejected commands and connection events are logged and, while connected,
// published to {root}/{device}/log.
package plc
