/*
   ttymatrix - matrix snooper: passive capture of the typewriter's own scan.

   Copyright (c) 2024, Richard Cornwell

   Permission is hereby granted, free of charge, to any person obtaining a
   copy of this software and associated documentation files (the "Software"),
   to deal in the Software without restriction, including without limitation
   the rights to use, copy, modify, merge, publish, distribute, sublicense,
   and/or sell copies of the Software, and to permit persons to whom the
   Software is furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
   RICHARD CORNWELL BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
   IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
   CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

*/

// Package snooper watches the typewriter's own row-strobe/column-readback
// scan and turns it into key-down/key-up events, without ever driving the
// bus itself. Strobe is the time-critical half, called once per scan pulse
// with whatever the bus looks like at that instant; Update is the
// cooperative half, called whenever convenient to drain a completed frame
// into events.
package snooper

import (
	"sync"

	"github.com/baljemmett/ttymatrix/debug"
	"github.com/baljemmett/ttymatrix/event"
	"github.com/baljemmett/ttymatrix/keys"
)

// idleCol1 mirrors keys.idleCol1: bits outside the five-bit keyboard field
// of the second column byte are not part of the matrix.
const idleCol1 = 0x3e

// row is one row's worth of captured column state.
type row struct {
	col0, col1 byte
}

func idleRow() row {
	return row{col0: 0xff, col1: idleCol1}
}

// Snooper reconstructs the 8x13 key matrix from a stream of row-strobe
// captures and reports transitions through a Queue.
type Snooper struct {
	mu sync.Mutex

	pending byte   // bit set per row not yet captured this frame
	scan    [8]row // captured-but-not-yet-drained column data

	down [8 * 13]bool // current latched state of each matrix position

	Queue event.Queue
}

// New returns a Snooper ready to receive Strobe calls, synchronized so
// that the first Update call will wait for a full frame.
func New() *Snooper {
	s := &Snooper{}
	s.reset()
	return s
}

func (s *Snooper) reset() {
	s.pending = 0xff
	for i := range s.scan {
		s.scan[i] = idleRow()
	}
}

// lowestBit returns 1 + the index of the lowest set bit in n, or 0 if n is
// zero.
func lowestBit(n byte) int {
	for bit := 0; bit < 8; bit++ {
		if n&(1<<uint(bit)) != 0 {
			return bit + 1
		}
	}
	return 0
}

// Strobe captures one instant of the row-strobe/column-readback bus.
// rowPins carries one active-low bit per row (0xff means no row is
// currently being scanned); col0/col1 carry the raw active-low column
// readback for whichever row is active (a clear bit means that column
// conducts), which Strobe inverts before storing. It must be called promptly after
// each scan pulse; it performs no locking heavier than a mutex, so it is
// safe to call from a dedicated capture goroutine while Update runs
// concurrently.
func (s *Snooper) Strobe(rowPins, col0, col1 byte) {
	col1 &= idleCol1

	if rowPins == 0xff {
		return // nothing being scanned, too late or between pulses
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending&^rowPins != 0 {
		r := lowestBit(^rowPins) - 1
		if r >= 0 && r < 8 {
			s.scan[r] = row{col0: ^col0, col1: ^col1 & idleCol1}
			s.pending &= rowPins
		}
	}
}

// Update drains a completed frame (one Strobe per row since the previous
// Update) into key events. It is a no-op if any row has yet to be seen,
// matching the firmware's early-exit so the capture side is never raced.
func (s *Snooper) Update() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != 0 {
		return
	}

	for r := 0; r < 8; r++ {
		s.updateRow(r, s.scan[r])
		s.scan[r] = idleRow()
	}
	s.pending = 0xff
}

// updateRow compares one row's captured columns against the latched state
// and queues transitions. A row reading back fully idle on both column
// bytes is a "ghost row" - the typewriter momentarily stopped driving it -
// and is ignored wholesale rather than read as 13 releases.
func (s *Snooper) updateRow(r int, cols row) {
	if cols.col0 == 0xff && cols.col1&idleCol1 == idleCol1 {
		return
	}

	for col := 0; col < 13; col++ {
		var active bool
		if col < 8 {
			active = cols.col0&(1<<uint(col)) != 0
		} else {
			active = cols.col1&(1<<uint(col-7)) != 0
		}

		idx := r*13 + col
		if active == s.down[idx] {
			continue
		}
		s.down[idx] = active
		k := keys.KeyAtPosition(r, col)
		debug.Tracef("snoop", debug.Snoop, "%s %v", k, active)
		s.Queue.Push(event.NewEvent(k, active))
	}
}

// Shutdown resets the snooper's capture state; it holds no external
// resources of its own.
func (s *Snooper) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// Debug enables or disables snoop tracing depending on name ("snoop" to
// enable, "-snoop" to disable).
func (s *Snooper) Debug(name string) error {
	return debug.Toggle(name)
}

// WaitForIdle blocks, by repeatedly calling isIdle, until the scan bus has
// gone idle (rowPins reads 0xff) - the same synchronisation the firmware
// performs once at startup and again before every injected keystroke, so
// that it only ever touches the bus between scan pulses. The caller
// supplies isIdle so tests can drive it deterministically instead of
// busy-polling real hardware.
func WaitForIdle(isIdle func() bool) {
	for !isIdle() {
	}
}
