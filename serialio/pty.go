/*
   ttymatrix - PTY-backed serial transport.

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
	"time"

	serial "github.com/daedaluz/goserial"
)

// PTY is a Serial backed by a real tty device (named in the config file, for
// a genuine machine on the other end of a null modem) or a freshly allocated
// pseudoterminal pair when no path is given.
type PTY struct {
	port *serial.Port
}

// OpenDevice opens a real serial device at path, putting it into raw mode at
// baud bits-per-second.
func OpenDevice(path string, baud serial.CFlag) (*PTY, error) {
	port, err := serial.Open(path, nil)
	if err != nil {
		return nil, fmt.Errorf("serialio: open %s: %w", path, err)
	}
	if err := port.MakeRaw(); err != nil {
		port.Close()
		return nil, fmt.Errorf("serialio: make raw %s: %w", path, err)
	}
	attrs, err := port.GetAttr()
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("serialio: get attrs %s: %w", path, err)
	}
	attrs.SetSpeed(baud)
	if err := port.SetAttr(serial.TCSANOW, attrs); err != nil {
		port.Close()
		return nil, fmt.Errorf("serialio: set attrs %s: %w", path, err)
	}
	port.SetReadTimeout(100 * time.Millisecond)
	return &PTY{port: port}, nil
}

// OpenPseudoTerminal allocates a fresh master/slave PTY pair, returning a
// Serial bound to the master side. The slave side is left open for the
// caller to hand to whatever external program should see it as a tty; it is
// the caller's responsibility to close it when done.
func OpenPseudoTerminal() (bridge *PTY, slaveFd int, err error) {
	master, slave, err := serial.OpenPTY(nil, nil)
	if err != nil {
		return nil, -1, fmt.Errorf("serialio: open pty: %w", err)
	}
	master.SetReadTimeout(100 * time.Millisecond)
	return &PTY{port: master}, slave.Fd(), nil
}

func (p *PTY) Read(b []byte) (int, error)  { return p.port.Read(b) }
func (p *PTY) Write(b []byte) (int, error) { return p.port.Write(b) }
func (p *PTY) Close() error                { return p.port.Close() }
