/*
   ttymatrix - per-subsystem debug tracing.

   Copyright 2024, Richard Cornwell

   Permission is hereby granted, free of charge, to any person obtaining a copy
   of this software and associated documentation files (the "Software"), to deal
   in the Software without restriction, including without limitation the rights
   to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
   copies of the Software, and to permit persons to whom the Software is
   furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
   AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
   LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
   OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
   SOFTWARE.

*/

// Package debug gates ISR-level tracing per subsystem behind a bitmask, so
// a field engineer can turn on, say, matrix-snoop tracing without
// flooding the log with injector and terminal chatter too.
package debug

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// Mask bits, one per subsystem.
const (
	Snoop = 1 << iota
	Inject
	Term
	Config
)

var names = map[string]int{
	"snoop":  Snoop,
	"inject": Inject,
	"term":   Term,
	"config": Config,
}

// MaskForName resolves a subsystem name (as used in the config file or the
// console's "debug" command) to its mask bit.
func MaskForName(name string) (int, bool) {
	m, ok := names[name]
	return m, ok
}

var enabled atomic.Int64

var (
	mu   sync.Mutex
	sink func(string)
)

// SetSink installs the function debug output is handed to; by default
// debug output is discarded. The bridge wires this to the logger package.
func SetSink(f func(string)) {
	mu.Lock()
	sink = f
	mu.Unlock()
}

// Enable turns on tracing for the subsystems named in mask, in addition to
// whatever is already enabled.
func Enable(mask int) {
	for {
		old := enabled.Load()
		if enabled.CompareAndSwap(old, old|int64(mask)) {
			return
		}
	}
}

// Disable turns off tracing for the subsystems named in mask.
func Disable(mask int) {
	for {
		old := enabled.Load()
		if enabled.CompareAndSwap(old, old&^int64(mask)) {
			return
		}
	}
}

// Enabled reports whether any bit of mask is currently enabled.
func Enabled(mask int) bool {
	return enabled.Load()&int64(mask) != 0
}

// Toggle parses a console/config debug argument of the form "name" (enable)
// or "-name" (disable) and applies it, returning an error if name does not
// name a registered subsystem. It is the shared implementation behind every
// component's Debug method.
func Toggle(arg string) error {
	off := strings.HasPrefix(arg, "-")
	name := strings.TrimPrefix(arg, "-")

	mask, ok := MaskForName(strings.ToLower(name))
	if !ok {
		return fmt.Errorf("debug: unknown subsystem %q", name)
	}
	if off {
		Disable(mask)
	} else {
		Enable(mask)
	}
	return nil
}

// Tracef emits a trace line for component if any bit of mask is enabled.
func Tracef(component string, mask int, format string, a ...interface{}) {
	if !Enabled(mask) {
		return
	}
	mu.Lock()
	s := sink
	mu.Unlock()
	if s == nil {
		return
	}
	s(component + ": " + fmt.Sprintf(format, a...))
}
