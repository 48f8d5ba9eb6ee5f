/*
   ttymatrix - configuration file parser

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

// Package config parses the bridge's configuration file: one keyword per
// line, '#' starts a comment that runs to end of line, blank lines are
// ignored.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/baljemmett/ttymatrix/debug"
)

// Config holds every setting the bridge reads out of a configuration file,
// each defaulted the way the typewriter itself powers up.
type Config struct {
	Serial   string // path to the PTY/tty device, e.g. /dev/ttyUSB0
	Telnet   string // listen address for the telnet bench transport, e.g. :2323
	Logfile  string // path to append log records to; empty disables file logging

	DebugMask int // OR of debug.Snoop/Inject/Term/Config, set by "debug" lines

	CtrlIndicator bool // overstrike Code-composed Ctrl chars with Backspace+Shift-Cents
	AutoReturn    bool // typewriter auto-returns when crossing the bell point
}

// Default returns the typewriter's power-up configuration: no serial
// transport configured, auto-return off, Ctrl indicator off.
func Default() *Config {
	return &Config{}
}

// line tracks the current parse position within one line of the file,
// mirroring the cursor-based tokenizer the original configuration parser
// used for its model/option grammar.
type line struct {
	text string
	pos  int
	num  int
}

func (l *line) skipSpace() {
	for l.pos < len(l.text) && unicode.IsSpace(rune(l.text[l.pos])) {
		l.pos++
	}
}

func (l *line) isEOL() bool {
	return l.pos >= len(l.text) || l.text[l.pos] == '#'
}

// word collects the next run of non-space characters.
func (l *line) word() string {
	l.skipSpace()
	start := l.pos
	for !l.isEOL() && !unicode.IsSpace(rune(l.text[l.pos])) {
		l.pos++
	}
	return l.text[start:l.pos]
}

// rest consumes and returns everything remaining on the line up to any '#'
// comment, trimmed of surrounding space, for keywords whose value may
// itself contain spaces (paths).
func (l *line) rest() string {
	l.skipSpace()
	end := len(l.text)
	if i := strings.IndexByte(l.text[l.pos:], '#'); i >= 0 {
		end = l.pos + i
	}
	value := strings.TrimSpace(l.text[l.pos:end])
	l.pos = end
	return value
}

// Load reads and parses a configuration file from path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a configuration file from r; it is separated from Load so
// tests can feed it a string reader directly.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	reader := bufio.NewReader(r)
	lineNum := 0

	for {
		text, err := reader.ReadString('\n')
		lineNum++
		if len(text) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}

		l := &line{text: text, num: lineNum}
		if perr := cfg.parseLine(l); perr != nil {
			return nil, perr
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
	}
	return cfg, nil
}

func (c *Config) parseLine(l *line) error {
	keyword := l.word()
	if keyword == "" {
		return nil
	}

	switch strings.ToLower(keyword) {
	case "serial":
		c.Serial = l.rest()
	case "telnet":
		c.Telnet = l.rest()
	case "logfile":
		c.Logfile = l.rest()
	case "ctrlindicator":
		on, err := parseBool(l, keyword)
		if err != nil {
			return err
		}
		c.CtrlIndicator = on
	case "autoreturn":
		on, err := parseBool(l, keyword)
		if err != nil {
			return err
		}
		c.AutoReturn = on
	case "debug":
		mask, err := parseDebugMask(l)
		if err != nil {
			return err
		}
		c.DebugMask |= mask
	default:
		return fmt.Errorf("config line %d: unknown keyword %q", l.num, keyword)
	}

	l.skipSpace()
	if !l.isEOL() {
		return fmt.Errorf("config line %d: unexpected trailing text after %q", l.num, keyword)
	}
	return nil
}

func parseBool(l *line, keyword string) (bool, error) {
	v := strings.ToLower(l.word())
	switch v {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	default:
		return false, fmt.Errorf("config line %d: %s: invalid boolean %q", l.num, keyword, v)
	}
}

func parseDebugMask(l *line) (int, error) {
	mask := 0
	for _, name := range strings.Split(l.rest(), ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		bit, ok := debug.MaskForName(strings.ToLower(name))
		if !ok {
			return 0, fmt.Errorf("config line %d: debug: unknown subsystem %q", l.num, name)
		}
		mask |= bit
	}
	// Consumed via rest(), so move pos to end of line to satisfy the
	// caller's trailing-text check.
	l.pos = len(l.text)
	return mask, nil
}
