/*
   ttymatrix - deterministic scan-tick scheduler for simulated time.

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

package clock

// callback fires when a scheduled tick count elapses.
type callback func()

type scheduled struct {
	ticks int
	cb    callback
	prev  *scheduled
	next  *scheduled
}

// schedule is a cycle-ordered linked list of pending callbacks, each
// holding a tick count relative to the one before it so that advancing
// time only ever has to touch the head of the list.
type schedule struct {
	head *scheduled
	tail *scheduled
}

func (s *schedule) add(ticks int, cb callback) {
	if ticks <= 0 {
		cb()
		return
	}

	ev := &scheduled{ticks: ticks, cb: cb}

	cur := s.head
	if cur == nil {
		s.head = ev
		s.tail = ev
		return
	}

	for cur != nil {
		if ev.ticks <= cur.ticks {
			cur.ticks -= ev.ticks
			ev.prev = cur.prev
			ev.next = cur
			cur.prev = ev
			if ev.prev != nil {
				ev.prev.next = ev
			} else {
				s.head = ev
			}
			return
		}
		ev.ticks -= cur.ticks
		cur = cur.next
	}

	ev.prev = s.tail
	s.tail.next = ev
	s.tail = ev
}

// advance moves simulated time forward by t ticks, firing (and removing)
// every callback whose remaining tick count reaches zero or below.
func (s *schedule) advance(t int) {
	cur := s.head
	if cur == nil {
		return
	}
	cur.ticks -= t
	for cur != nil && cur.ticks <= 0 {
		over := cur.ticks
		cur.cb()
		s.head = cur.next
		if s.head != nil {
			s.head.prev = nil
			s.head.ticks += over
		} else {
			s.tail = nil
		}
		cur = s.head
	}
}

// SimClock is a Clock driven entirely by calls to Advance rather than wall
// time, so tests can assert holdoff/tick behavior without sleeping.
type SimClock struct {
	holdoff int
	sched   schedule
}

// NewSim returns a SimClock with no holdoff running.
func NewSim() *SimClock {
	return &SimClock{}
}

func (c *SimClock) Start(delayMs int) {
	c.holdoff += delayMs
}

func (c *SimClock) Running() bool {
	return c.holdoff > 0
}

// SleepMs schedules its own expiry delayMs ticks in the future and
// advances the clock until it fires; callers see it as an ordinary
// blocking sleep, but the simulated time backing it moves only when the
// test code driving this SimClock calls Advance or SleepMs itself.
func (c *SimClock) SleepMs(delayMs int) {
	fired := false
	c.sched.add(delayMs, func() { fired = true })
	for !fired {
		c.Advance(1)
	}
}

// Advance moves simulated time forward by t milliseconds, decrementing the
// holdoff counter and firing any scheduled callbacks.
func (c *SimClock) Advance(t int) {
	for i := 0; i < t; i++ {
		if c.holdoff > 0 {
			c.holdoff--
		}
	}
	c.sched.advance(t)
}
