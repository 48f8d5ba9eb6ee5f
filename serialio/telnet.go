/*
   ttymatrix - telnet bench transport.

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
	"fmt"
	"log/slog"
	"net"
)

// Telnet is a single-connection bench transport: it listens on address,
// serves one client at a time, and behaves like any other Serial while that
// client is connected. A newly accepted client replaces the current one
// (closing it) on the next Read or Write; there is no multiplexing, since
// the typewriter the bridge is standing in for only ever has one other end.
type Telnet struct {
	listener net.Listener
	accepted chan net.Conn
	shutdown chan struct{}
	conn     net.Conn
}

// ListenTelnet opens a listener on address (e.g. ":2323") and starts
// accepting connections in the background.
func ListenTelnet(address string) (*Telnet, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("serialio: listen %s: %w", address, err)
	}
	t := &Telnet{
		listener: listener,
		accepted: make(chan net.Conn),
		shutdown: make(chan struct{}),
	}
	go t.acceptLoop()
	return t, nil
}

func (t *Telnet) acceptLoop() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.shutdown:
				return
			default:
				slog.Warn("serialio: telnet accept failed", "error", err)
				continue
			}
		}
		select {
		case t.accepted <- conn:
		case <-t.shutdown:
			conn.Close()
			return
		}
	}
}

// currentConn returns the active connection, blocking for one to arrive if
// none is connected yet, and swapping in any newer connection that has
// shown up since.
func (t *Telnet) currentConn() (net.Conn, error) {
	select {
	case c := <-t.accepted:
		if t.conn != nil {
			t.conn.Close()
		}
		t.conn = c
		return c, nil
	default:
	}
	if t.conn != nil {
		return t.conn, nil
	}
	select {
	case c := <-t.accepted:
		t.conn = c
		return c, nil
	case <-t.shutdown:
		return nil, fmt.Errorf("serialio: telnet shut down")
	}
}

func (t *Telnet) Read(b []byte) (int, error) {
	conn, err := t.currentConn()
	if err != nil {
		return 0, err
	}
	n, err := conn.Read(b)
	if err != nil {
		t.conn = nil
	}
	return n, err
}

func (t *Telnet) Write(b []byte) (int, error) {
	conn, err := t.currentConn()
	if err != nil {
		return 0, err
	}
	n, err := conn.Write(b)
	if err != nil {
		t.conn = nil
	}
	return n, err
}

// Close tears down the listener and any active connection.
func (t *Telnet) Close() error {
	close(t.shutdown)
	if t.conn != nil {
		t.conn.Close()
	}
	return t.listener.Close()
}
