package plc

import (
	"github.com/nerrad567/plcbridge/internal/channel"
)

// OnInputChange publishes the new level of an input as retained state.
//
// Each call is independent: nothing is queued or coalesced, so the last
// call wins on the wire. While disconnected the change is logged and
// recorded but not published; the level is not replayed on reconnect.
func (b *Bridge) OnInputChange(name string, value Signal) {
	kind := channel.DigitalInput
	if ch, ok := b.table.Lookup(name); ok {
		kind = ch.Kind
	} else {
		b.logWarn("input change for unknown channel", "channel", name)
	}

	b.logDebug("input changed", "channel", name, "value", value)

	if err := b.publishState(name, kind, value); err != nil {
		b.logWarn("failed to publish input state", "channel", name, "error", err)
	}
}

// republish publishes the remembered state of an output, if any.
func (b *Bridge) republish(name string, kind channel.Kind) {
	value, ok := b.outputs[name]
	if !ok {
		return
	}
	if err := b.publishState(name, kind, value); err != nil {
		b.logWarn("failed to republish output state", "channel", name, "error", err)
	}
}
