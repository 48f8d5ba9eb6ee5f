/*
   ttymatrix - bidirectional character/carriage model for the typewriter.

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

// Package terminal translates between typewriter key events and serial
// ASCII bytes in both directions, tracking Shift/Lock/Code modifier state
// and a model of the carriage's physical position so it knows when the
// typewriter would mechanically auto-return.
package terminal

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/baljemmett/ttymatrix/clock"
	"github.com/baljemmett/ttymatrix/debug"
	"github.com/baljemmett/ttymatrix/event"
	"github.com/baljemmett/ttymatrix/injector"
	"github.com/baljemmett/ttymatrix/keys"
)

// Carriage-model constants, in 1/XPI-inch units unless noted.
const (
	XPI                 = 120 // X-units per inch; 10/12/15 cpi all divide it evenly
	PowerupCPI          = 10
	PowerupLeftMargin   = 10 // character columns at the power-up pitch
	PowerupRightMargin  = 75 // character columns at the power-up pitch
	MarginBellChars     = 8
	ReturnDelayMs       = 1000
)

// Injector is the subset of *injector.Injector the terminal needs to turn
// a received character back into keystrokes.
type Injector interface {
	SendKey(k keys.KeyId) error
	SendChord(hold, k keys.KeyId) error
}

var _ Injector = (*injector.Injector)(nil)

// Terminal owns the modifier state machine and carriage position, and
// bridges a Queue of key events to an io.Writer carrying serial output,
// and serial input bytes back to an Injector.
type Terminal struct {
	Out    io.Writer
	Inject Injector
	Clock  clock.Clock

	// CtrlIndicator controls whether a Ctrl character composed on the
	// keyboard (Code tapped alone, then a letter) is also marked on the
	// paper by injecting a Backspace plus a shifted-cents overstrike; it is
	// left to configuration rather than hardwired.
	CtrlIndicator bool

	isLocked   bool
	isLockDown bool
	isShifted  bool
	isCode     bool
	codePress  bool
	sendCtrl   bool

	cxCharacter   int
	cxPosition    int
	cxLeftMargin  int
	cxRightMargin int
	cxBell        int
	autoReturn    bool

	swallowLF bool
}

// New returns a Terminal at the typewriter's power-up defaults: 10cpi
// pitch, margins at character columns 10 and 75, auto-return off.
func New(out io.Writer, inj Injector, clk clock.Clock) *Terminal {
	t := &Terminal{
		Out:           out,
		Inject:        inj,
		Clock:         clk,
		cxCharacter:   XPI / PowerupCPI,
		cxPosition:    (PowerupLeftMargin * XPI) / PowerupCPI,
		cxLeftMargin:  (PowerupLeftMargin * XPI) / PowerupCPI,
		cxRightMargin: (PowerupRightMargin * XPI) / PowerupCPI,
	}
	t.cxBell = t.cxRightMargin - MarginBellChars*t.cxCharacter
	return t
}

// CyclePitch advances the pitch the same way a Code+P keystroke does; it is
// exposed for the console's "pitch" command, which stands in for that
// keystroke when no physical typewriter is attached.
func (t *Terminal) CyclePitch() {
	t.pitchCycled()
}

// ToggleAutoReturn flips auto-return the same way a Code+R keystroke does;
// exposed for the console's "autoreturn" command.
func (t *Terminal) ToggleAutoReturn() {
	t.autoReturnToggled()
}

// CPI reports the typewriter's current characters-per-inch pitch.
func (t *Terminal) CPI() int {
	return XPI / t.cxCharacter
}

// AutoReturn reports whether auto-return is currently enabled.
func (t *Terminal) AutoReturn() bool {
	return t.autoReturn
}

// Status summarizes the terminal's modifier and carriage state for the
// console's "show" command.
func (t *Terminal) Status() string {
	return fmt.Sprintf(
		"pitch=%dcpi position=%d/%d margin=[%d,%d] autoreturn=%t shift=%t lock=%t code=%t busy=%t",
		t.CPI(), t.cxPosition, XPI, t.cxLeftMargin, t.cxRightMargin,
		t.autoReturn, t.isShifted, t.isLocked, t.isCode, t.Busy(),
	)
}

func (t *Terminal) pitchCycled() {
	switch t.cxCharacter {
	case XPI / 10:
		t.cxCharacter = XPI / 12
	case XPI / 12:
		t.cxCharacter = XPI / 15
	default:
		t.cxCharacter = XPI / 10
	}
	t.cxBell = t.cxRightMargin - MarginBellChars*t.cxCharacter
}

func (t *Terminal) autoReturnToggled() {
	t.autoReturn = !t.autoReturn
}

// charPrinted advances the carriage by one character width, and - if
// canBreak and auto-return are both active and the carriage has crossed
// the bell point - starts the return holdoff and snaps the model back to
// the left margin, the way the typewriter's own mechanism would.
func (t *Terminal) charPrinted(canBreak bool) {
	if t.cxPosition < 11*XPI {
		t.cxPosition += t.cxCharacter
	}
	if canBreak && t.autoReturn && t.cxPosition > t.cxBell {
		t.Clock.Start(ReturnDelayMs)
		t.cxPosition = t.cxLeftMargin
	}
}

// handleMotion updates the carriage-position model for key, without
// producing any output; it is applied both when a physical key is pressed
// and when a received character is turned back into a keystroke.
func (t *Terminal) handleMotion(key keys.KeyId) {
	switch key {
	case keys.KeyBackspc, keys.KeyErase:
		if t.cxPosition > t.cxLeftMargin {
			t.cxPosition -= t.cxCharacter
		}
	case keys.KeyCrtn, keys.KeyMarRtn:
		if t.cxPosition > t.cxLeftMargin {
			t.Clock.Start(ReturnDelayMs)
		}
		t.cxPosition = t.cxLeftMargin
	case keys.KeyMarRel, keys.KeyLMar, keys.KeyRMar, keys.KeyTset, keys.KeyTclr,
		keys.KeyPaperUp, keys.KeyPaperDown, keys.KeyLinespace:
		// no carriage-position effect
	case keys.KeySpace, keys.KeyTab, keys.KeyDash:
		t.charPrinted(true)
	default:
		t.charPrinted(false)
	}
}

// codeSwallowed lists the Code-shifted keys that are reserved (or simply
// unassigned) and must never fall through to ordinary character handling.
var codeSwallowed = map[keys.KeyId]bool{
	keys.KeyQ: true, keys.KeyT: true, keys.KeyU: true, keys.KeyAt: true,
	keys.Key3: true, keys.Key6: true, keys.KeyF: true, keys.KeyJ: true,
	keys.KeyTab: true, keys.KeyColon: true, keys.KeyIndices: true,
	keys.KeyC: true, keys.KeyBackspc: true,
}

// HandleKeyEvent processes one key event observed on the matrix, updating
// modifier/carriage state and writing a character to Out if the event
// produces one.
func (t *Terminal) HandleKeyEvent(ev event.KeyEvent) {
	key := ev.Key()

	switch key {
	case keys.KeyShift:
		t.isShifted = ev.IsDown()
		if t.isShifted {
			t.isLocked = false
		} else {
			t.isLocked = t.isLockDown
		}
		return

	case keys.KeyLock:
		if t.isShifted {
			t.isLocked = false
		} else {
			t.isLocked = true
		}
		t.isLockDown = ev.IsDown()
		return

	case keys.KeyCode:
		if ev.IsDown() {
			t.isCode = true
			t.codePress = true
		} else {
			t.isCode = false
			if t.codePress {
				t.codePress = false
				t.sendCtrl = true
			}
		}
		return
	}

	if !ev.IsDown() {
		return
	}
	t.codePress = false

	if t.isCode {
		if key == keys.KeyP {
			t.pitchCycled()
			return
		}
		if key == keys.KeyR {
			t.autoReturnToggled()
			return
		}
		if codeSwallowed[key] {
			return
		}
	}

	if key == keys.KeyNone || key == keys.KeyUnknown || key >= keys.KeyMax {
		return
	}

	lookup := key
	if t.isShifted || t.isLocked {
		lookup |= keys.KeyShifted
	}

	t.handleMotion(key)

	ch := keys.ASCIIForKey(lookup)

	if t.sendCtrl {
		t.sendCtrl = false
		ch = t.composeControl(ch)
	}

	if ch != 0 && t.Out != nil {
		debug.Tracef("term", debug.Term, "key=%v -> %q", key, ch)
		if _, err := t.Out.Write([]byte{ch}); err != nil {
			slog.Warn("terminal: write to serial line failed", "error", err)
		}
	}
}

// composeControl turns a letter into its Ctrl-code equivalent, optionally
// injecting the firmware's visual overstrike indicator (Backspace then a
// shifted Cents sign) back onto the typewriter so the typist sees the
// control character represented on paper.
func (t *Terminal) composeControl(ch byte) byte {
	var ctrl byte
	switch {
	case ch >= 'A' && ch <= 'Z':
		ctrl = ch - 'A' + 1
	case ch >= 'a' && ch <= 'z':
		ctrl = ch - 'a' + 1
	default:
		return ch
	}

	if t.CtrlIndicator && t.Inject != nil {
		if err := t.Inject.SendKey(keys.KeyBackspc); err != nil {
			slog.Debug("terminal: ctrl-indicator backspace failed", "error", err)
		} else {
			t.handleMotion(keys.KeyBackspc)
		}
		if err := t.Inject.SendChord(keys.KeyShift, keys.KeyCents); err != nil {
			slog.Debug("terminal: ctrl-indicator overstrike failed", "error", err)
		} else {
			t.handleMotion(keys.KeyCents)
		}
	}

	return ctrl
}

// Drain processes every event currently queued in q.
func (t *Terminal) Drain(q *event.Queue) {
	for {
		ev, ok := q.Pop()
		if !ok {
			return
		}
		t.HandleKeyEvent(ev)
	}
}

// Busy reports whether the terminal is in the middle of a Code sequence,
// a pending Ctrl composition, or an injection holdoff, and so should not
// be handed another received character yet.
func (t *Terminal) Busy() bool {
	return t.sendCtrl || t.isCode || t.Clock.Running()
}

// InjectByte turns one received serial byte into a keystroke (or several,
// for a chord or a Locked letter), collapsing a \n immediately following a
// \r the same way the firmware's line-ending swallow flag did.
func (t *Terminal) InjectByte(ch byte) {
	if ch == '\n' && t.swallowLF {
		t.swallowLF = false
		return
	}
	t.swallowLF = ch == '\r'

	t.injectASCII(ch)
}

func (t *Terminal) injectASCII(ch byte) {
	key := keys.KeyForASCII(ch)
	if key == keys.KeyNone {
		return
	}

	base := key &^ keys.KeyShifted
	ok := true

	if key&keys.KeyShifted != 0 {
		if t.isShifted || t.isLocked {
			ok = t.sendKey(base)
		} else {
			ok = t.sendChord(keys.KeyShift, base)
		}
	} else {
		switch {
		case t.isLocked:
			ok = t.sendKey(keys.KeyShift)
			ok = t.sendKey(base) && ok
			ok = t.sendKey(keys.KeyLock) && ok
		case t.isShifted:
			// Can't lop the typist's finger off to clear the shift state;
			// send as-is.
			ok = t.sendKey(base)
		default:
			ok = t.sendKey(base)
		}
	}

	// A key that never reached the matrix never moved the carriage either;
	// advancing the model here would desynchronize it from the paper.
	if ok {
		t.handleMotion(base)
	}
}

func (t *Terminal) sendKey(k keys.KeyId) bool {
	if t.Inject == nil {
		return false
	}
	if err := t.Inject.SendKey(k); err != nil {
		slog.Warn("terminal: key injection failed", "key", k, "error", err)
		return false
	}
	return true
}

func (t *Terminal) sendChord(hold, k keys.KeyId) bool {
	if t.Inject == nil {
		return false
	}
	if err := t.Inject.SendChord(hold, k); err != nil {
		slog.Warn("terminal: chord injection failed", "hold", hold, "key", k, "error", err)
		return false
	}
	return true
}

// Shutdown resets the terminal's modifier and carriage state to power-up
// defaults; it holds no external resources of its own.
func (t *Terminal) Shutdown() {
	*t = *New(t.Out, t.Inject, t.Clock)
}

// Debug enables or disables terminal tracing (see debug.Toggle).
func (t *Terminal) Debug(name string) error {
	return debug.Toggle(name)
}
