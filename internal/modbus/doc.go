// Package modbus polls discrete inputs on a chain of Modbus devices and
// executes commands addressed to them.
//
// Devices are numbered M0..M(n-1) and map to consecutive slave IDs from a
// configured first ID. Each device exposes a fixed number of discrete
// inputs, named M<device>I<index>.
//
// The Poller is driven from the bridge's polling loop. Each Scan polls at
// most one device, cycling through the chain, so a single tick never waits
// on more than one bus transaction.
package modbus
