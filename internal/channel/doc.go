// Package channel holds the static I/O inventory of the controller.
//
// A Table is built once from configuration and maps channel names such as
// "R0", "D5", "A3" or "M2I3" to their physical address. Relays occupy one
// contiguous pin range. Digital outputs are split across banks whose pin
// numbering is not contiguous, so OutputPin is the only place a logical
// output number is turned into a pin.
package channel
