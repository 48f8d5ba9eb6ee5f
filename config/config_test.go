package config

import (
	"strings"
	"testing"

	"github.com/baljemmett/ttymatrix/debug"
)

func TestParseBasicKeywords(t *testing.T) {
	src := `
# sample config
serial /dev/ttyUSB0
telnet :2323
logfile /var/log/ttymatrix.log
ctrlindicator on
autoreturn on
`
	cfg, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Serial != "/dev/ttyUSB0" {
		t.Errorf("got Serial %q", cfg.Serial)
	}
	if cfg.Telnet != ":2323" {
		t.Errorf("got Telnet %q", cfg.Telnet)
	}
	if cfg.Logfile != "/var/log/ttymatrix.log" {
		t.Errorf("got Logfile %q", cfg.Logfile)
	}
	if !cfg.CtrlIndicator {
		t.Error("expected CtrlIndicator true")
	}
	if !cfg.AutoReturn {
		t.Error("expected AutoReturn true")
	}
}

func TestParseDebugMaskCombinesSubsystems(t *testing.T) {
	cfg, err := Parse(strings.NewReader("debug snoop,term\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := debug.Snoop | debug.Term
	if cfg.DebugMask != want {
		t.Fatalf("got mask %d, want %d", cfg.DebugMask, want)
	}
}

func TestCommentsAndBlankLinesIgnored(t *testing.T) {
	cfg, err := Parse(strings.NewReader("\n# nothing here\n   \nserial /dev/ttyS0 # inline comment\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Serial != "/dev/ttyS0" {
		t.Fatalf("got Serial %q", cfg.Serial)
	}
}

func TestUnknownKeywordIsError(t *testing.T) {
	_, err := Parse(strings.NewReader("bogus value\n"))
	if err == nil {
		t.Fatal("expected error for unknown keyword")
	}
}

func TestInvalidBooleanIsError(t *testing.T) {
	_, err := Parse(strings.NewReader("autoreturn maybe\n"))
	if err == nil {
		t.Fatal("expected error for invalid boolean")
	}
}

func TestUnknownDebugSubsystemIsError(t *testing.T) {
	_, err := Parse(strings.NewReader("debug bogus\n"))
	if err == nil {
		t.Fatal("expected error for unknown debug subsystem")
	}
}
