/*
   ttymatrix - key injector: presents synthetic keystrokes on the matrix bus.

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

// Package injector drives the typewriter's matrix bus to simulate a key
// being pressed, the same way the firmware's fast ISR presented tristate
// data from a lookup table indexed by the live row strobe. Observe is the
// time-critical path, called once per scan pulse; SendKey and SendChord
// are the cooperative-context entry points a caller uses to type.
package injector

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/baljemmett/ttymatrix/debug"
	"github.com/baljemmett/ttymatrix/keys"
)

// Timing constants, in scan ticks or milliseconds, matching the firmware.
const (
	KeystrokeGap   = 30 // ms holdoff observed after every injected keystroke
	KeystrokeTicks = 10 // ticks a single injected key is held down
	ChordBefore    = 3  // ticks the held key leads the struck key by
	ChordAfter     = 2  // ticks the held key lingers after the struck key releases
	ScansPerTick   = 17 // scan pulses per tick
)

// nonKeyboardCol1 are the PORTC bits the matrix doesn't own (notably the
// UART TX line); injected data must never disturb them.
const nonKeyboardCol1 byte = 0x81

// nonKeyboardCol1Up is the set of bits to force inactive-safe on release;
// the firmware ORs in the bitwise complement of the matrix field.
const nonKeyboardCol1Up byte = ^byte(0x3e)

// Holdoff models the shared post-injection quiet period the terminal and
// injector both observe, so a caller doesn't stack a fresh keystroke on
// top of one the typewriter hasn't mechanically finished yet.
type Holdoff interface {
	Start(ms int)
	Running() bool
}

// ErrBusy is returned by SendKey/SendChord when a holdoff from a previous
// keystroke is still running; the original firmware treated this as "a
// sanity check in case someone calls us when they shouldn't," busy-waiting
// instead, but a library has a cleaner way to say "not now."
var ErrBusy = errors.New("injector: holdoff from a previous keystroke still running")

// Injector holds the 256-entry tristate table the scan bus reads on every
// pulse, plus the tick counter used to time how long an injected key stays
// down.
type Injector struct {
	mu   sync.RWMutex
	data [256]byte

	ticks atomic.Int32

	holdoff Holdoff

	// idle reports whether the scan bus is currently between pulses
	// (row strobe reads all-high); the chord sender must only touch the
	// table there, to avoid presenting half-written data mid-strobe.
	idle func() bool

	// settle is called to pass time while waiting for the bus to settle
	// into an idle window; in real operation this is the clock's
	// millisecond sleep, in tests a no-op or simulated advance.
	settle func()
}

// New returns an Injector with every table entry at its power-up default:
// 0xff (TRISD inactive) everywhere, except at indices that are the inverse
// of a single active row-strobe bit, which get 0xbf (TRISC inactive) -
// those are the only indices a real strobe can ever present.
func New(holdoff Holdoff, idle func() bool, settle func()) *Injector {
	inj := &Injector{holdoff: holdoff, idle: idle, settle: settle}
	for i := 1; i < 256; i++ {
		inj.data[i] = 0xff
	}
	inj.data[0] = 0xbf
	for bit := byte(1); bit != 0; bit <<= 1 {
		inj.data[bit] = 0xbf
	}
	return inj
}

// Observe is called once per scan pulse with the live row-strobe reading.
// It returns the TRISD/TRISC values to present for that strobe, and
// decrements the injection tick counter if a timed keystroke is active.
func (inj *Injector) Observe(strobe byte) (col0, col1 byte) {
	inj.mu.RLock()
	col0 = inj.data[strobe]
	col1 = inj.data[strobe^0xff]
	inj.mu.RUnlock()

	for {
		old := inj.ticks.Load()
		if old <= 0 {
			break
		}
		if inj.ticks.CompareAndSwap(old, old-1) {
			break
		}
	}
	return col0, col1
}

func (inj *Injector) setKeyDown(row, col0, col1 byte) {
	col1 |= nonKeyboardCol1

	inj.mu.Lock()
	defer inj.mu.Unlock()
	inj.data[row] &= col0
	inj.data[row^0xff] &= col1
}

func (inj *Injector) setKeyUp(row, col0, col1 byte) {
	col1 |= nonKeyboardCol1Up

	inj.mu.Lock()
	defer inj.mu.Unlock()
	inj.data[row] |= ^col0
	inj.data[row^0xff] |= ^col1
}

// waitTicks blocks until n ticks' worth of scan pulses have been observed.
func (inj *Injector) waitTicks(n int) {
	inj.ticks.Store(int32(n * ScansPerTick))
	for inj.ticks.Load() > 0 {
		runtime.Gosched()
	}
}

// waitForIdleWindow blocks until the bus has settled into a scan gap,
// mirroring the firmware's do/while that waits for a strobe pulse and then
// blocks 4ms to land in the dead period between rows, rechecking in case
// the block wasn't long enough.
func (inj *Injector) waitForIdleWindow() {
	for {
		for !inj.idle() {
			runtime.Gosched()
		}
		inj.settle()
		if inj.idle() {
			return
		}
	}
}

// sendChord is the shared implementation of SendKey and SendChord: holdKey
// is pressed first (if valid) and held across the strike of key, which is
// itself held for KeystrokeTicks ticks.
func (inj *Injector) sendChord(hold, key keys.ScanCode) error {
	if inj.holdoff.Running() {
		return ErrBusy
	}

	debug.Tracef("inject", debug.Inject, "hold=%v key=%v", hold, key)

	inj.waitForIdleWindow()

	haveHold := hold.Row != 0 && hold.Row != 0xff

	if haveHold {
		inj.setKeyDown(hold.Row, hold.Col0, hold.Col1)
		inj.waitTicks(ChordBefore)
	}

	inj.setKeyDown(key.Row, key.Col0, key.Col1)
	inj.waitTicks(KeystrokeTicks)
	inj.setKeyUp(key.Row, key.Col0, key.Col1)

	if haveHold {
		inj.waitTicks(ChordAfter)
		inj.setKeyUp(hold.Row, hold.Col0, hold.Col1)
	}

	inj.holdoff.Start(KeystrokeGap)
	return nil
}

// SendKey injects a single keystroke of k.
func (inj *Injector) SendKey(k keys.KeyId) error {
	sc := keys.ScanFor(k)
	if sc.Row == 0 || sc.Row == 0xff {
		return errors.New("injector: key has no matrix position")
	}
	return inj.sendChord(keys.ScanCode{}, sc)
}

// SendChord injects key while holding hold down across its strike, the way
// Shift+letter or Code+letter combinations are typed.
func (inj *Injector) SendChord(hold, key keys.KeyId) error {
	holdSC := keys.ScanFor(hold)
	keySC := keys.ScanFor(key)
	if keySC.Row == 0 || keySC.Row == 0xff || holdSC.Row == 0 || holdSC.Row == 0xff {
		return errors.New("injector: key has no matrix position")
	}
	return inj.sendChord(holdSC, keySC)
}

// SendSignature injects the firmware's four-keystroke diagnostic sequence,
// a fixed set of raw scan codes rather than named keys (it predates -
// or simply bypasses - the named-key table). It has no effect beyond
// whatever those four scan positions happen to produce; it exists purely
// as a bench self-test that the serial line is alive end to end.
func (inj *Injector) SendSignature() error {
	raw := []keys.ScanCode{
		{Row: 0x7f, Col0: 0xff, Col1: 0x2e},
		{Row: 0xfd, Col0: 0xfd, Col1: 0x3e},
		{Row: 0xfd, Col0: 0xdf, Col1: 0x3e},
		{Row: 0xfd, Col0: 0xff, Col1: 0x1e},
	}
	for _, sc := range raw {
		if err := inj.sendChord(keys.ScanCode{}, sc); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown restores the tristate table to its idle default, releasing the
// bus as if no injection were in progress.
func (inj *Injector) Shutdown() {
	inj.mu.Lock()
	defer inj.mu.Unlock()
	for i := 1; i < 256; i++ {
		inj.data[i] = 0xff
	}
	inj.data[0] = 0xbf
	for bit := byte(1); bit != 0; bit <<= 1 {
		inj.data[bit] = 0xbf
	}
}

// Debug enables or disables injector tracing (see debug.Toggle).
func (inj *Injector) Debug(name string) error {
	return debug.Toggle(name)
}
