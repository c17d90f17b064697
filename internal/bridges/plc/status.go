package plc

import (
	"maps"
)

// Status is a point-in-time view of the bridge for out-of-loop readers.
type Status struct {
	Connected bool `json:"connected"`
	Halted    bool `json:"halted"`
	LinkDown  bool `json:"link_down"`

	// Attempts counts connect attempts since the last successful connect.
	Attempts int `json:"attempts"`

	// Outputs holds the last value written to each relay and digital output,
	// rendered as on the wire.
	Outputs map[string]string `json:"outputs"`
}

// Status returns the most recent snapshot.
//
// Thread Safety: Safe to call from any goroutine. The snapshot is
// refreshed at the end of each Tick and after RestoreOutputs.
func (b *Bridge) Status() Status {
	s := b.status.Load()
	if s == nil {
		return Status{Outputs: map[string]string{}}
	}
	out := *s
	out.Outputs = maps.Clone(s.Outputs)
	return out
}

// snapshot stores a new Status if anything visible changed since the last one.
func (b *Bridge) snapshot() {
	prev := b.status.Load()
	if prev != nil && !b.outputsDirty &&
		prev.Connected == b.connected &&
		prev.Halted == b.halted &&
		prev.LinkDown == b.linkDown &&
		prev.Attempts == b.attempts {
		return
	}

	outputs := make(map[string]string, len(b.outputs))
	for name, value := range b.outputs {
		outputs[name] = value.String()
	}

	b.status.Store(&Status{
		Connected: b.connected,
		Halted:    b.halted,
		LinkDown:  b.linkDown,
		Attempts:  b.attempts,
		Outputs:   outputs,
	})
	b.outputsDirty = false
}
