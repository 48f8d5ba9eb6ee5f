package console

import (
	"strings"
	"testing"

	"github.com/baljemmett/ttymatrix/bridge"
	"github.com/baljemmett/ttymatrix/clock"
	"github.com/baljemmett/ttymatrix/serialio"
)

func newTestCore(t *testing.T) *bridge.Core {
	t.Helper()
	lb := serialio.NewLoopback()
	clk := clock.NewReal()
	t.Cleanup(clk.Stop)
	return bridge.New(lb, clk, false)
}

func TestMatchListBelowMinimumLength(t *testing.T) {
	match := matchList("s")
	if len(match) != 0 {
		t.Fatalf("expected single-letter prefix below every command's minimum to match nothing, got %v", match)
	}
}

func TestMatchListUniquePrefix(t *testing.T) {
	match := matchList("sh")
	if len(match) != 1 || match[0].name != "show" {
		t.Fatalf("expected 'sh' to match only 'show', got %v", match)
	}
}

func TestProcessCommandUnknown(t *testing.T) {
	core := newTestCore(t)
	_, err := ProcessCommand("bogus", core)
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestProcessCommandShow(t *testing.T) {
	core := newTestCore(t)
	quit, err := ProcessCommand("show", core)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quit {
		t.Fatal("show should not quit the REPL")
	}
}

func TestProcessCommandPitchCycles(t *testing.T) {
	core := newTestCore(t)
	before := core.Terminal.CPI()
	if _, err := ProcessCommand("pitch", core); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if core.Terminal.CPI() == before {
		t.Fatal("expected pitch command to change the cpi")
	}
}

func TestProcessCommandAutoReturnToggles(t *testing.T) {
	core := newTestCore(t)
	before := core.Terminal.AutoReturn()
	if _, err := ProcessCommand("autoreturn", core); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if core.Terminal.AutoReturn() == before {
		t.Fatal("expected autoreturn command to flip the flag")
	}
}

func TestProcessCommandSendUnknownKey(t *testing.T) {
	core := newTestCore(t)
	_, err := ProcessCommand("send boguskey", core)
	if err == nil {
		t.Fatal("expected error for unknown key name")
	}
}

func TestProcessCommandSendMissingArgument(t *testing.T) {
	core := newTestCore(t)
	_, err := ProcessCommand("send", core)
	if err == nil {
		t.Fatal("expected error when send is given no key")
	}
}

func TestProcessCommandDebugTogglesAndRejectsUnknown(t *testing.T) {
	core := newTestCore(t)
	if _, err := ProcessCommand("debug snoop", core); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ProcessCommand("debug bogus", core); err == nil {
		t.Fatal("expected error for unknown debug subsystem")
	}
}

func TestProcessCommandQuit(t *testing.T) {
	core := newTestCore(t)
	quit, err := ProcessCommand("quit", core)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !quit {
		t.Fatal("expected quit command to report quit=true")
	}
}

func TestCompleteCmdMatchesCommandNames(t *testing.T) {
	matches := CompleteCmd("sh")
	found := false
	for _, m := range matches {
		if m == "show" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected 'sh' completion to include 'show', got %v", matches)
	}
}

func TestCompleteCmdKeyArgument(t *testing.T) {
	matches := CompleteCmd("send a")
	if len(matches) == 0 {
		t.Fatal("expected at least one key completion for 'send a'")
	}
	for _, m := range matches {
		if !strings.HasPrefix(m, "a") {
			t.Fatalf("completion %q does not match the 'a' prefix", m)
		}
	}
}
