// Package gpio drives relay and digital output pins and reports input
// edges through the Linux GPIO character device.
//
// Edge events are delivered by the kernel on a library goroutine. They are
// queued and only reported from Scan, which the bridge calls from its
// polling loop, so input changes never interleave with command handling.
package gpio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// eventBuffer bounds the number of unscanned edge events.
const eventBuffer = 256

var (
	// ErrClosed is returned when the chip is not open.
	ErrClosed = errors.New("gpio: chip closed")

	// ErrInvalidValue is returned when a pin write is not 0 or 1.
	ErrInvalidValue = errors.New("gpio: pin value must be 0 or 1")
)

// Input describes one monitored input line.
type Input struct {
	Name   string
	Pin    int
	PullUp bool
}

// edge is one queued input level change.
type edge struct {
	name  string
	level int
	seq   uint64
}

// Chip owns the requested lines of one GPIO chip.
//
// Output lines are requested on first write. Input lines are requested
// with both-edge detection when the chip is opened.
type Chip struct {
	chip *gpiocdev.Chip

	outputs map[int]*gpiocdev.Line
	inputs  []*gpiocdev.Line
	mu      sync.Mutex

	// names maps input line offsets to channel names.
	names map[int]string

	// levels holds the last reported level per input, and applied the
	// sequence number of the edge that set it.
	levels  map[string]int
	applied map[string]uint64

	events chan edge

	// overflow holds the newest level of inputs whose edges no longer fit
	// in events. While an input has an entry, its later edges overwrite it
	// instead of queueing, so per-input order is kept.
	overflow map[string]edge
	seq      uint64
	dropped  int
	dropMu   sync.Mutex

	// reported is the drop count already logged by Scan.
	reported int
	logger   Logger
}

// Logger receives event queue overflow warnings.
type Logger interface {
	Warn(msg string, args ...any)
}

// Open opens a GPIO chip and requests the input lines.
//
// Parameters:
//   - name: Chip name (e.g. "gpiochip0")
//   - inputs: Lines to monitor for edges
//   - debounce: Kernel debounce period for inputs; zero disables it
//
// Returns:
//   - *Chip: Open chip ready for WritePin and Scan
//   - error: If the chip or any input line cannot be requested
func Open(name string, inputs []Input, debounce time.Duration) (*Chip, error) {
	raw, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open chip %s: %w", name, err)
	}

	c := newChip(inputs)
	c.chip = raw

	for _, in := range inputs {
		opts := []gpiocdev.LineReqOption{
			gpiocdev.AsInput,
			gpiocdev.WithBothEdges,
			gpiocdev.WithEventHandler(c.handleEvent),
		}
		if debounce > 0 {
			opts = append(opts, gpiocdev.WithDebounce(debounce))
		}
		if in.PullUp {
			opts = append(opts, gpiocdev.WithPullUp)
		}

		line, err := raw.RequestLine(in.Pin, opts...)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("request input %s pin %d: %w", in.Name, in.Pin, err)
		}
		c.inputs = append(c.inputs, line)

		if v, err := line.Value(); err == nil {
			c.levels[in.Name] = v
		}
	}

	return c, nil
}

// newChip builds the bookkeeping for a set of inputs without touching hardware.
func newChip(inputs []Input) *Chip {
	c := &Chip{
		outputs:  make(map[int]*gpiocdev.Line),
		names:    make(map[int]string, len(inputs)),
		levels:   make(map[string]int, len(inputs)),
		applied:  make(map[string]uint64, len(inputs)),
		events:   make(chan edge, eventBuffer),
		overflow: make(map[string]edge),
	}
	for _, in := range inputs {
		c.names[in.Pin] = in.Name
	}
	return c
}

// WritePin sets an output pin, requesting it as an output on first use.
func (c *Chip) WritePin(pin int, value int) error {
	if value != 0 && value != 1 {
		return fmt.Errorf("%w: pin %d value %d", ErrInvalidValue, pin, value)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.chip == nil {
		return ErrClosed
	}

	if line, ok := c.outputs[pin]; ok {
		if err := line.SetValue(value); err != nil {
			return fmt.Errorf("set pin %d: %w", pin, err)
		}
		return nil
	}

	line, err := c.chip.RequestLine(pin, gpiocdev.AsOutput(value))
	if err != nil {
		return fmt.Errorf("request output pin %d: %w", pin, err)
	}
	c.outputs[pin] = line
	return nil
}

// SetLogger sets where queue overflow is reported.
func (c *Chip) SetLogger(logger Logger) {
	c.logger = logger
}

// Scan reports queued input changes.
//
// Each queued edge whose level differs from the last reported level for
// that input results in one notify call. Inputs that overflowed the queue
// are then reported at their newest level, so the last level reported is
// always the last level seen. Scan never blocks.
//
// Returns:
//   - int: Number of changes reported
func (c *Chip) Scan(_ time.Time, notify func(channel string, value int64)) int {
	changed := 0
	for drained := false; !drained; {
		select {
		case e := <-c.events:
			if c.report(e, notify) {
				changed++
			}
		default:
			drained = true
		}
	}

	c.dropMu.Lock()
	latest := c.overflow
	if len(latest) > 0 {
		c.overflow = make(map[string]edge)
	}
	dropped := c.dropped
	c.dropMu.Unlock()

	for _, e := range latest {
		if c.report(e, notify) {
			changed++
		}
	}

	if dropped > c.reported {
		if c.logger != nil {
			c.logger.Warn("input event queue full, edges coalesced",
				"dropped", dropped-c.reported,
				"inputs", len(latest),
			)
		}
		c.reported = dropped
	}
	return changed
}

// report notifies a level change. Edges older than the last one applied
// for the input are ignored.
func (c *Chip) report(e edge, notify func(string, int64)) bool {
	if e.seq <= c.applied[e.name] {
		return false
	}
	c.applied[e.name] = e.seq
	if last, ok := c.levels[e.name]; ok && last == e.level {
		return false
	}
	c.levels[e.name] = e.level
	notify(e.name, int64(e.level))
	return true
}

// Dropped returns the number of edge events lost to a full queue.
func (c *Chip) Dropped() int {
	c.dropMu.Lock()
	defer c.dropMu.Unlock()
	return c.dropped
}

// Close releases every requested line and the chip.
func (c *Chip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, line := range c.inputs {
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close input line: %w", err))
		}
	}
	c.inputs = nil

	for pin, line := range c.outputs {
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close output pin %d: %w", pin, err))
		}
	}
	c.outputs = make(map[int]*gpiocdev.Line)

	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		c.chip = nil
	}

	return errors.Join(errs...)
}

// handleEvent runs on the library's event goroutine.
func (c *Chip) handleEvent(evt gpiocdev.LineEvent) {
	name, ok := c.names[evt.Offset]
	if !ok {
		return
	}
	c.push(name, levelFromEdge(evt.Type))
}

// push queues a level change. When the queue is full, or the input
// already overflowed, the level replaces the input's overflow slot.
func (c *Chip) push(name string, level int) {
	c.dropMu.Lock()
	defer c.dropMu.Unlock()

	c.seq++
	e := edge{name: name, level: level, seq: c.seq}
	if _, spilled := c.overflow[name]; !spilled {
		select {
		case c.events <- e:
			return
		default:
		}
	}
	c.overflow[name] = e
	c.dropped++
}

// levelFromEdge returns the line level after an edge.
func levelFromEdge(t gpiocdev.LineEventType) int {
	if t == gpiocdev.LineEventRisingEdge {
		return 1
	}
	return 0
}
