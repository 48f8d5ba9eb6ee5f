/*
   ttymatrix - millisecond clock and post-keystroke holdoff timer.

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

// Package clock provides the millisecond tick and holdoff countdown the
// injector and terminal use to pace keystrokes and carriage returns, the
// Go equivalent of the firmware's TMR0 1ms interrupt and g_cmsHoldoff
// counter.
package clock

import (
	"sync"
	"time"
)

// Clock is the interface the injector and terminal depend on. Start adds
// delayMs to the running holdoff (matching the firmware's additive
// semantics: two back-to-back holdoffs extend rather than replace each
// other); Running reports whether the holdoff has yet to expire; SleepMs
// blocks the calling goroutine for roughly delayMs, used for the fixed
// settling delays the injector waits out between scan pulses.
type Clock interface {
	Start(delayMs int)
	Running() bool
	SleepMs(delayMs int)
}

// RealClock drives the holdoff countdown from an actual 1ms ticker, the
// direct equivalent of the firmware's TMR0 interrupt handler.
type RealClock struct {
	mu      sync.Mutex
	holdoff int

	wg      sync.WaitGroup
	done    chan struct{}
	ticker  *time.Ticker
}

// NewReal starts a RealClock's background 1ms tick goroutine and returns
// it; call Stop when done to release the ticker.
func NewReal() *RealClock {
	c := &RealClock{done: make(chan struct{})}
	c.ticker = time.NewTicker(time.Millisecond)
	c.wg.Add(1)
	go c.run()
	return c
}

func (c *RealClock) run() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ticker.C:
			c.mu.Lock()
			if c.holdoff > 0 {
				c.holdoff--
			}
			c.mu.Unlock()
		case <-c.done:
			return
		}
	}
}

// Stop halts the tick goroutine. It does not return until the goroutine
// has exited.
func (c *RealClock) Stop() {
	c.ticker.Stop()
	close(c.done)
	c.wg.Wait()
}

func (c *RealClock) Start(delayMs int) {
	c.mu.Lock()
	c.holdoff += delayMs
	c.mu.Unlock()
}

func (c *RealClock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.holdoff > 0
}

func (c *RealClock) SleepMs(delayMs int) {
	time.Sleep(time.Duration(delayMs) * time.Millisecond)
}
