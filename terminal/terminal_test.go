package terminal

import (
	"bytes"
	"testing"

	"github.com/baljemmett/ttymatrix/clock"
	"github.com/baljemmett/ttymatrix/event"
	"github.com/baljemmett/ttymatrix/keys"
)

type recordingInjector struct {
	sent []keys.KeyId
}

func (r *recordingInjector) SendKey(k keys.KeyId) error {
	r.sent = append(r.sent, k)
	return nil
}

func (r *recordingInjector) SendChord(hold, k keys.KeyId) error {
	r.sent = append(r.sent, hold, k)
	return nil
}

func newTestTerminal() (*Terminal, *bytes.Buffer, *recordingInjector) {
	out := &bytes.Buffer{}
	inj := &recordingInjector{}
	term := New(out, inj, clock.NewSim())
	return term, out, inj
}

func down(k keys.KeyId) event.KeyEvent { return event.NewEvent(k, true) }
func up(k keys.KeyId) event.KeyEvent   { return event.NewEvent(k, false) }

func TestLowercaseLetterTypes(t *testing.T) {
	term, out, _ := newTestTerminal()

	term.HandleKeyEvent(down(keys.KeyA))

	if out.String() != "a" {
		t.Fatalf("got %q, want %q", out.String(), "a")
	}
}

func TestShiftedLetterTypesUppercase(t *testing.T) {
	term, out, _ := newTestTerminal()

	term.HandleKeyEvent(down(keys.KeyShift))
	term.HandleKeyEvent(down(keys.KeyA))
	term.HandleKeyEvent(up(keys.KeyShift))

	if out.String() != "A" {
		t.Fatalf("got %q, want %q", out.String(), "A")
	}
}

func TestLockLatchesShiftAfterRelease(t *testing.T) {
	term, out, _ := newTestTerminal()

	term.HandleKeyEvent(down(keys.KeyLock))
	term.HandleKeyEvent(up(keys.KeyLock))
	term.HandleKeyEvent(down(keys.KeyA))
	term.HandleKeyEvent(down(keys.KeyB))

	if out.String() != "AB" {
		t.Fatalf("got %q, want %q", out.String(), "AB")
	}
}

func TestCodePCyclesPitchWithoutOutput(t *testing.T) {
	term, out, _ := newTestTerminal()

	before := term.cxCharacter
	term.HandleKeyEvent(down(keys.KeyCode))
	term.HandleKeyEvent(down(keys.KeyP))
	term.HandleKeyEvent(up(keys.KeyCode))

	if out.Len() != 0 {
		t.Fatalf("Code+P must not produce output, got %q", out.String())
	}
	if term.cxCharacter == before || term.cxCharacter != XPI/12 {
		t.Fatalf("pitch did not cycle from 10cpi to 12cpi: got %d", term.cxCharacter)
	}
}

func TestBareCodeTapBecomesCtrlComposition(t *testing.T) {
	term, out, _ := newTestTerminal()

	term.HandleKeyEvent(down(keys.KeyCode))
	term.HandleKeyEvent(up(keys.KeyCode))

	if !term.sendCtrl {
		t.Fatal("a bare Code tap should arm a Ctrl composition")
	}

	term.HandleKeyEvent(down(keys.KeyC))

	if got := out.Bytes(); len(got) != 1 || got[0] != 3 {
		t.Fatalf("got %v, want Ctrl-C (0x03)", got)
	}
}

func TestInjectASCIIUppercaseWhenUnshiftedSendsChord(t *testing.T) {
	term, _, inj := newTestTerminal()

	term.InjectByte('A')

	if len(inj.sent) != 2 || inj.sent[0] != keys.KeyShift || inj.sent[1] != keys.KeyA {
		t.Fatalf("got %v, want [Shift A]", inj.sent)
	}
}

func TestInjectASCIILowercaseSendsBareKey(t *testing.T) {
	term, _, inj := newTestTerminal()

	term.InjectByte('a')

	if len(inj.sent) != 1 || inj.sent[0] != keys.KeyA {
		t.Fatalf("got %v, want [A]", inj.sent)
	}
}

func TestInjectByteSwallowsLFAfterCR(t *testing.T) {
	term, _, inj := newTestTerminal()

	term.InjectByte('\r')
	afterCR := len(inj.sent)
	term.InjectByte('\n')

	if len(inj.sent) != afterCR {
		t.Fatalf("\\n immediately after \\r should be swallowed, got %d new keys", len(inj.sent)-afterCR)
	}
}

func TestAutoReturnStartsHoldoffPastBellPoint(t *testing.T) {
	term, _, _ := newTestTerminal()
	term.autoReturn = true

	// Plain letters advance the carriage but never themselves trigger a
	// break (bCanBreak is false for the default motion case); only
	// Space/Tab/Dash can. Walk the carriage past the bell point with
	// letters, then let a Space trigger the check.
	for i := 0; i < 60; i++ {
		term.HandleKeyEvent(down(keys.KeyA))
	}
	if term.cxPosition <= term.cxBell {
		t.Fatalf("test setup didn't walk the carriage past the bell point: pos=%d bell=%d", term.cxPosition, term.cxBell)
	}

	term.HandleKeyEvent(down(keys.KeySpace))

	if !term.Clock.Running() {
		t.Fatal("expected the return holdoff to be running after crossing the bell point")
	}
	if term.cxPosition != term.cxLeftMargin {
		t.Fatalf("carriage should have snapped back to the left margin, got %d", term.cxPosition)
	}
}
