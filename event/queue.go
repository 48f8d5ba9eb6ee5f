/*
   ttymatrix - key-event ring buffer.

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

// Package event holds key-down/key-up records in a small ring buffer that
// the matrix snooper's Update fills and the terminal drains, both from the
// cooperative context.
package event

import "github.com/baljemmett/ttymatrix/keys"

// Released flags a KeyEvent as a key-up transition. It lives in the same
// top bit as keys.KeyShifted but the two never mix: a KeyEvent only ever
// carries an unshifted KeyId.
const Released byte = 0x80

// KeyEvent packs a key-down or key-up transition into a single byte: the
// low seven bits are the KeyId, the top bit marks release.
type KeyEvent byte

// NewEvent builds a KeyEvent for key k transitioning to down (down=true) or
// up (down=false).
func NewEvent(k keys.KeyId, down bool) KeyEvent {
	e := KeyEvent(k)
	if !down {
		e |= KeyEvent(Released)
	}
	return e
}

// IsDown reports whether e is a key-down transition.
func (e KeyEvent) IsDown() bool {
	return byte(e)&Released == 0
}

// Key returns the key e refers to, with the release flag stripped.
func (e KeyEvent) Key() keys.KeyId {
	return keys.KeyId(byte(e) &^ Released)
}

// queueLen matches the firmware's 16-slot event queue.
const queueLen = 16

// Queue is a fixed-capacity single-producer/single-consumer ring buffer of
// KeyEvents. A producer that outpaces the consumer overwrites the oldest
// unread events rather than blocking or failing.
type Queue struct {
	buf   [queueLen]KeyEvent
	read  int
	write int
}

// Push enqueues e. The queue holds at most queueLen-1 unread events;
// pushing onto a full queue silently discards the oldest unread event.
func (q *Queue) Push(e KeyEvent) {
	q.buf[q.write] = e
	q.write = (q.write + 1) % queueLen
	if q.write == q.read {
		q.read = (q.read + 1) % queueLen
	}
}

// Pop removes and returns the oldest unread event. ok is false if the
// queue is empty.
func (q *Queue) Pop() (e KeyEvent, ok bool) {
	if q.read == q.write {
		return 0, false
	}
	e = q.buf[q.read]
	q.read = (q.read + 1) % queueLen
	return e, true
}

// Empty reports whether the queue currently has no unread events.
func (q *Queue) Empty() bool {
	return q.read == q.write
}
