/*
   ttymatrix - in-memory serial test double.

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

package serialio

import (
	"bytes"
	"errors"
	"sync"
)

// ErrClosed is returned by a Loopback's Read/Write once Close has run.
var ErrClosed = errors.New("serialio: loopback closed")

// Loopback is an in-memory Serial: bytes passed to Feed are what a test
// pretends the bridge received from its peer, and bytes written by the
// bridge accumulate for a test to inspect through Sent.
type Loopback struct {
	mu     sync.Mutex
	in     bytes.Buffer
	out    bytes.Buffer
	closed bool
}

// NewLoopback returns an empty Loopback.
func NewLoopback() *Loopback {
	return &Loopback{}
}

// Feed appends bytes as if they had arrived from the peer, for Read to hand
// back to the bridge.
func (l *Loopback) Feed(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.in.Write(b)
}

// Sent returns (and clears) everything written to the loopback so far.
func (l *Loopback) Sent() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := append([]byte(nil), l.out.Bytes()...)
	l.out.Reset()
	return b
}

func (l *Loopback) Read(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, ErrClosed
	}
	return l.in.Read(b)
}

func (l *Loopback) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, ErrClosed
	}
	return l.out.Write(b)
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}
