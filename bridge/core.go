/*
   ttymatrix - bridge core: wires the matrix snooper, injector, and terminal
   to a serial transport and drives their cooperative-context polling loop.

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

// Package bridge wires the matrix snooper, the key injector, and the
// terminal translator to a serial transport, and runs the cooperative-
// context polling loop that drains snooped key events to the serial line
// and turns received bytes back into injected keystrokes.
package bridge

import (
	"log/slog"
	"sync"
	"time"

	"github.com/baljemmett/ttymatrix/clock"
	"github.com/baljemmett/ttymatrix/injector"
	"github.com/baljemmett/ttymatrix/serialio"
	"github.com/baljemmett/ttymatrix/snooper"
	"github.com/baljemmett/ttymatrix/terminal"
)

// PollInterval is how often the run loop drains the snooper's queue and
// checks for received serial bytes; the matrix scan itself happens on the
// Strobe/Observe fast path, independent of this loop.
const PollInterval = time.Millisecond

// ScanPulsePeriod approximates the interval between the typewriter's own
// row-strobe pulses. A Core wired to real matrix hardware is driven by
// ObserveStrobe at this rate by whatever reads the GPIO lines; a Core
// running without one (telnet/PTY bench mode, with no physical typewriter
// attached) free-runs its own virtual pulses at the same rate purely so the
// injector's tick counter - which only ever decrements inside Observe -
// keeps moving and SendKey/SendChord don't block forever.
const ScanPulsePeriod = time.Millisecond / injector.ScansPerTick

var (
	_ Component = (*snooper.Snooper)(nil)
	_ Component = (*injector.Injector)(nil)
	_ Component = (*terminal.Terminal)(nil)
)

// Core owns the snooper, injector, and terminal for one typewriter, plus
// the serial transport carrying bytes to and from the host at the other
// end of the line.
type Core struct {
	Snoop    *snooper.Snooper
	Inject   *injector.Injector
	Terminal *terminal.Terminal
	Serial   serialio.Serial

	rx rxQueue

	wg      sync.WaitGroup
	done    chan struct{}
	running bool
}

// rxQueue holds serial bytes received but not yet handed to the terminal.
// Bytes arrive from runSerialReader, which never itself touches Terminal;
// only runCooperative drains it, one byte per tick at most, keeping every
// Terminal access on that single goroutine.
type rxQueue struct {
	mu  sync.Mutex
	buf []byte
}

func (q *rxQueue) push(b []byte) {
	q.mu.Lock()
	q.buf = append(q.buf, b...)
	q.mu.Unlock()
}

func (q *rxQueue) pop() (byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buf) == 0 {
		return 0, false
	}
	b := q.buf[0]
	q.buf = q.buf[1:]
	return b, true
}

// New wires a Core around an already-open serial transport and the given
// clock, constructing a snooper, injector, and terminal for it.
func New(serial serialio.Serial, clk clock.Clock, ctrlIndicator bool) *Core {
	inj := injector.New(clk, func() bool { return true }, func() { clk.SleepMs(4) })
	term := terminal.New(serial, inj, clk)
	term.CtrlIndicator = ctrlIndicator

	return &Core{
		Snoop:    snooper.New(),
		Inject:   inj,
		Terminal: term,
		Serial:   serial,
		done:     make(chan struct{}),
	}
}

// ObserveStrobe is the single entry point the real scan hardware (or a
// bench harness standing in for it) calls once per scan pulse: it combines
// the snooper's passive capture with the injector's presented tristate
// data, exactly as the firmware's shared ISR did both jobs back to back.
func (c *Core) ObserveStrobe(rowPins, col0, col1 byte) (outCol0, outCol1 byte) {
	c.Snoop.Strobe(rowPins, col0, col1)
	return c.Inject.Observe(rowPins)
}

// Start launches the background goroutines that drain key events to the
// serial line and received bytes back into injected keystrokes.
func (c *Core) Start() {
	c.running = true
	c.wg.Add(3)
	go c.runCooperative()
	go c.runSerialReader()
	go c.runScanPulses()
}

// runScanPulses free-runs virtual scan pulses against the injector so its
// tick counter keeps moving even when nothing external is driving
// ObserveStrobe. A Core wired to a real matrix bus receives real pulses
// through ObserveStrobe instead, which call Observe just the same; either
// source is indistinguishable to the injector.
func (c *Core) runScanPulses() {
	defer c.wg.Done()
	ticker := time.NewTicker(ScanPulsePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Inject.Observe(0xff)
		case <-c.done:
			return
		}
	}
}

// runCooperative is the bridge's single cooperative-context loop: every
// tick it drains the snooper's completed frames forward to the serial
// line, then - at most one byte per tick, and only when the terminal
// isn't mid Code-sequence, mid Ctrl-composition, or still inside its
// post-keystroke holdoff - takes one received byte back off the rx queue
// and injects it. A byte left behind because the terminal is busy simply
// stays queued for a later tick, rather than being dropped. Driving both
// directions from this one goroutine is what keeps every Terminal access
// single-threaded, matching the firmware's own matrix-then-terminal
// sequencing in its main loop.
func (c *Core) runCooperative() {
	defer c.wg.Done()
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Snoop.Update()
			c.Terminal.Drain(&c.Snoop.Queue)

			if !c.Terminal.Busy() {
				if b, ok := c.rx.pop(); ok {
					c.Terminal.InjectByte(b)
				}
			}
		case <-c.done:
			return
		}
	}
}

// runSerialReader blocks on Serial.Read and queues every received byte for
// runCooperative to hand to the terminal; it never touches Terminal
// itself.
func (c *Core) runSerialReader() {
	defer c.wg.Done()
	buf := make([]byte, 256)
	for {
		select {
		case <-c.done:
			return
		default:
		}
		n, err := c.Serial.Read(buf)
		if err != nil {
			select {
			case <-c.done:
				return
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}
		c.rx.push(buf[:n])
	}
}

// Stop shuts down the run loops and every wired component, closing the
// serial transport last.
func (c *Core) Stop() {
	if !c.running {
		return
	}
	c.running = false
	close(c.done)

	finished := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		slog.Warn("bridge: timed out waiting for core to shut down")
	}

	c.Snoop.Shutdown()
	c.Inject.Shutdown()
	c.Terminal.Shutdown()

	if err := c.Serial.Close(); err != nil {
		slog.Warn("bridge: closing serial transport", "error", err)
	}
}

// Debug applies a debug toggle argument (see debug.Toggle) uniformly across
// every wired component.
func (c *Core) Debug(arg string) error {
	for _, comp := range []Component{c.Snoop, c.Inject, c.Terminal} {
		if err := comp.Debug(arg); err != nil {
			return err
		}
	}
	return nil
}
