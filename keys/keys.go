/*
   ttymatrix - typewriter key identifiers and scan/ASCII translation tables.

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

// Package keys defines the typewriter's internal key identifiers and the
// tables that translate between them, the 8x13 scan matrix position they
// occupy, and the ASCII character they produce.
package keys

import "strings"

// KeyId names one physical key (or pseudo-key) on the typewriter keyboard.
// The numbering follows the order the original firmware's keyid_t enum
// used, which in turn follows neither row nor column order but historical
// accident; callers should treat the values as opaque except for KeyNone,
// KeyMax and KeyShifted.
type KeyId uint8

const (
	KeyNone KeyId = iota
	KeyUnknown

	KeyMarRel
	KeyCents
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	Key0
	KeyDash
	KeyMu
	KeyBackspc
	KeyPaperUp

	KeyLMar
	KeyTab
	KeyQ
	KeyW
	KeyE
	KeyR
	KeyT
	KeyY
	KeyU
	KeyI
	KeyO
	KeyP
	KeyAt
	KeyBrackets
	KeyCrtn
	KeyPaperDown

	KeyRMar
	KeyLock
	KeyA
	KeyS
	KeyD
	KeyF
	KeyG
	KeyH
	KeyJ
	KeyK
	KeyL
	KeySemicolon
	KeyColon
	KeyIndices
	KeyMarRtn

	KeyTset
	KeyShift
	KeyAngles
	KeyZ
	KeyX
	KeyC
	KeyV
	KeyB
	KeyN
	KeyM
	KeyComma
	KeyFullstop
	KeySlash
	KeyRepeat

	KeyTclr
	KeyCode
	KeySpace
	KeyErase
	KeyLinespace

	KeyMax
)

// KeyShifted flags an ASCII-table lookup (forward or reverse) as wanting the
// shifted form of the key it is ORed onto. It shares the top bit of the
// byte with event.Released, but the two are never mixed: one lives in
// keyid-with-shift space, the other in keyevent-with-direction space.
const KeyShifted KeyId = 0x80

func (k KeyId) String() string {
	if name, ok := names[k&^KeyShifted]; ok {
		if k&KeyShifted != 0 {
			return name + "+Shift"
		}
		return name
	}
	return "Key?"
}

var names = map[KeyId]string{
	KeyNone: "None", KeyUnknown: "Unknown",
	KeyMarRel: "MarRel", KeyCents: "Cents",
	Key1: "1", Key2: "2", Key3: "3", Key4: "4", Key5: "5",
	Key6: "6", Key7: "7", Key8: "8", Key9: "9", Key0: "0",
	KeyDash: "Dash", KeyMu: "Mu", KeyBackspc: "Backspace", KeyPaperUp: "PaperUp",
	KeyLMar: "LMar", KeyTab: "Tab",
	KeyQ: "Q", KeyW: "W", KeyE: "E", KeyR: "R", KeyT: "T", KeyY: "Y",
	KeyU: "U", KeyI: "I", KeyO: "O", KeyP: "P",
	KeyAt: "At", KeyBrackets: "Brackets", KeyCrtn: "Crtn", KeyPaperDown: "PaperDown",
	KeyRMar: "RMar", KeyLock: "Lock",
	KeyA: "A", KeyS: "S", KeyD: "D", KeyF: "F", KeyG: "G", KeyH: "H",
	KeyJ: "J", KeyK: "K", KeyL: "L",
	KeySemicolon: "Semicolon", KeyColon: "Colon", KeyIndices: "Indices", KeyMarRtn: "MarRtn",
	KeyTset: "Tset", KeyShift: "Shift", KeyAngles: "Angles",
	KeyZ: "Z", KeyX: "X", KeyC: "C", KeyV: "V", KeyB: "B", KeyN: "N", KeyM: "M",
	KeyComma: "Comma", KeyFullstop: "Fullstop", KeySlash: "Slash", KeyRepeat: "Repeat",
	KeyTclr: "Tclr", KeyCode: "Code", KeySpace: "Space", KeyErase: "Erase",
	KeyLinespace: "Linespace",
}

var byName map[string]KeyId

func init() {
	byName = make(map[string]KeyId, len(names))
	for k, name := range names {
		byName[strings.ToLower(name)] = k
	}
}

// KeyByName resolves a key's display name (as returned by String, case
// insensitive) back to its KeyId, for the console's "send"/"chord"
// commands.
func KeyByName(name string) (KeyId, bool) {
	k, ok := byName[strings.ToLower(name)]
	return k, ok
}

// Names returns every key's lower-cased display name, for the console's
// tab-completion of "send"/"chord" arguments.
func Names() []string {
	out := make([]string, 0, len(byName))
	for name := range byName {
		out = append(out, name)
	}
	return out
}

// ScanCode is the row strobe byte and pair of column tristate bytes that
// select a single key on the matrix, in the same active-low sense the
// typewriter drives the bus: a 0 bit means "this pin is driven," a 1 bit
// means "this pin floats."
type ScanCode struct {
	Row  byte
	Col0 byte
	Col1 byte
}

// idleCol1 is the inactive value for the second column byte: the five
// matrix bits (0x3e) are set (inactive), and bits 0, 6 and 7 of PORTC,
// which are not part of the keyboard matrix (they carry the UART), are
// left clear in this value.
const idleCol1 = 0x3e

// rowKeyIDs is the forward scan table: for row r, column c (0..12), the key
// that sits at that position. Columns 0-7 are read from PORTD, columns 8-12
// from the low five bits (ignoring bit 0) of PORTC.
var rowKeyIDs = [8][13]KeyId{
	{KeyUnknown, KeyUnknown, KeyUnknown, KeyUnknown, KeyUnknown, KeyUnknown, KeyColon, KeyUnknown, KeyUnknown, KeyTclr, KeyUnknown, KeyG, KeyH},
	{KeyUnknown, KeyA, KeyS, KeyD, KeyK, KeyL, KeySemicolon, KeyMarRtn, KeyUnknown, KeyUnknown, KeyTset, KeyF, KeyJ},
	{KeyUnknown, KeyCents, KeyUnknown, KeyUnknown, KeyMu, KeyUnknown, KeyDash, KeyBackspc, KeyUnknown, KeyUnknown, KeyMarRel, Key5, Key6},
	{KeyUnknown, Key1, Key2, Key3, Key8, Key9, Key0, KeyPaperUp, KeyUnknown, KeyUnknown, KeyUnknown, Key4, Key7},
	{KeyUnknown, KeyQ, KeyW, KeyE, KeyI, KeyO, KeyP, KeyPaperDown, KeyUnknown, KeyLMar, KeyTab, KeyR, KeyU},
	{KeyUnknown, KeyUnknown, KeyUnknown, KeyUnknown, KeyBrackets, KeyUnknown, KeyAt, KeyUnknown, KeyUnknown, KeyUnknown, KeyRMar, KeyT, KeyY},
	{KeyUnknown, KeyZ, KeyX, KeyC, KeyComma, KeyFullstop, KeyIndices, KeyCrtn, KeyUnknown, KeyRepeat, KeyLock, KeyV, KeyM},
	{KeyShift, KeyAngles, KeyUnknown, KeyUnknown, KeyUnknown, KeyUnknown, KeySlash, KeyLinespace, KeyCode, KeySpace, KeyErase, KeyB, KeyN},
}

var scanTable [KeyMax]ScanCode

func init() {
	for row := 0; row < 8; row++ {
		for col := 0; col < 13; col++ {
			key := rowKeyIDs[row][col]
			if key == KeyNone || key == KeyUnknown || key >= KeyMax {
				continue
			}
			sc := ScanCode{Row: 0xff, Col0: 0xff, Col1: idleCol1}
			sc.Row &^= 1 << uint(row)
			if col < 8 {
				sc.Col0 &^= 1 << uint(col)
			} else {
				sc.Col1 &^= 1 << uint(col-7)
			}
			scanTable[key] = sc
		}
	}
	for key := KeyId(0); key < KeyMax; key++ {
		if scanTable[key] == (ScanCode{}) {
			scanTable[key] = ScanCode{Row: 0xff, Col0: 0xff, Col1: idleCol1}
		}
	}
}

// KeyAtPosition returns the key wired to matrix row r (0-7), column c (0-12).
func KeyAtPosition(row, col int) KeyId {
	if row < 0 || row > 7 || col < 0 || col > 12 {
		return KeyUnknown
	}
	return rowKeyIDs[row][col]
}

// ScanFor returns the row strobe and column tristate values that select k.
// A zero or 0xff Row means k has no matrix position and cannot be injected.
func ScanFor(k KeyId) ScanCode {
	if k >= KeyMax {
		return ScanCode{Row: 0xff, Col0: 0xff, Col1: idleCol1}
	}
	return scanTable[k]
}

// asciiKeys is the forward ASCII table: for ASCII code ch (0-127), the key
// (optionally with KeyShifted set) that produces it.
var asciiKeys = [128]KeyId{
	KeyNone, KeyNone, KeyNone, KeyNone,
	KeyNone, KeyNone, KeyNone, KeyNone,
	KeyBackspc, KeyTab, KeyCrtn, KeyNone,
	KeyNone, KeyCrtn, KeyNone, KeyNone,

	KeyNone, KeyNone, KeyNone, KeyNone,
	KeyNone, KeyNone, KeyNone, KeyNone,
	KeyNone, KeyNone, KeyNone, KeyNone,
	KeyNone, KeyNone, KeyNone, KeyNone,

	KeySpace, Key1 | KeyShifted, Key2 | KeyShifted, KeyMu | KeyShifted,
	Key4 | KeyShifted, Key5 | KeyShifted, Key6 | KeyShifted, Key7 | KeyShifted,
	Key8 | KeyShifted, Key9 | KeyShifted, KeyColon | KeyShifted, KeySemicolon | KeyShifted,
	KeyComma, KeyDash, KeyFullstop, KeySlash,

	Key0, Key1, Key2, Key3,
	Key4, Key5, Key6, Key7,
	Key8, Key9, KeyColon, KeySemicolon,
	KeyAngles, Key0 | KeyShifted, KeyAngles | KeyShifted, KeySlash | KeyShifted,

	KeyAt, KeyA | KeyShifted, KeyB | KeyShifted, KeyC | KeyShifted,
	KeyD | KeyShifted, KeyE | KeyShifted, KeyF | KeyShifted, KeyG | KeyShifted,
	KeyH | KeyShifted, KeyI | KeyShifted, KeyJ | KeyShifted, KeyK | KeyShifted,
	KeyL | KeyShifted, KeyM | KeyShifted, KeyN | KeyShifted, KeyO | KeyShifted,

	KeyP | KeyShifted, KeyQ | KeyShifted, KeyR | KeyShifted, KeyS | KeyShifted,
	KeyT | KeyShifted, KeyU | KeyShifted, KeyV | KeyShifted, KeyW | KeyShifted,
	KeyX | KeyShifted, KeyY | KeyShifted, KeyZ | KeyShifted, KeyBrackets | KeyShifted,
	KeyAt | KeyShifted, KeyBrackets, KeyCents | KeyShifted, KeyDash | KeyShifted,

	Key7 | KeyShifted, KeyA, KeyB, KeyC,
	KeyD, KeyE, KeyF, KeyG,
	KeyH, KeyI, KeyJ, KeyK,
	KeyL, KeyM, KeyN, KeyO,

	KeyP, KeyQ, KeyR, KeyS,
	KeyT, KeyU, KeyV, KeyW,
	KeyX, KeyY, KeyZ, KeyBrackets | KeyShifted,
	KeyMu, KeyBrackets, KeyCents, KeyErase,
}

// achKeys is the reverse ASCII table, indexed by KeyId optionally ORed with
// KeyShifted. Built once at init time from the forward table: the first
// ASCII code that maps to a given (key, shift) pair wins, matching the
// original firmware's first-occurrence-wins reverse-table construction.
var achKeys [int(KeyMax) + int(KeyShifted)]byte

func init() {
	for ch := 0; ch < 128; ch++ {
		key := asciiKeys[ch]
		if key&^KeyShifted < KeyMax {
			if achKeys[key] == 0 {
				achKeys[key] = byte(ch)
			}
		}
	}
}

// KeyForASCII returns the key (possibly with KeyShifted set) that types ch,
// or KeyNone if ch has no mapping.
func KeyForASCII(ch byte) KeyId {
	if ch >= 128 {
		return KeyNone
	}
	return asciiKeys[ch]
}

// ASCIIForKey returns the character key (optionally ORed with KeyShifted)
// produces, or 0 if it has none.
func ASCIIForKey(key KeyId) byte {
	if int(key) >= len(achKeys) {
		return 0
	}
	return achKeys[key]
}
