/*
   ttymatrix - interactive console: abbreviation-matched commands over a
   running bridge.Core, for bench use without a physical typewriter attached.

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

// Package console implements the operator-facing REPL: an abbreviation-
// matching command table driven by a line editor, operating on a running
// bridge.Core. It stands in for the physical typewriter when the bridge is
// run against a telnet bench connection or a loopback PTY instead of real
// matrix hardware.
package console

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/peterh/liner"

	"github.com/baljemmett/ttymatrix/bridge"
	"github.com/baljemmett/ttymatrix/keys"
)

type cmd struct {
	name     string
	min      int
	process  func(*cmdLine, *bridge.Core) (bool, error)
	complete func(*cmdLine) []string
}

type cmdLine struct {
	line string
	pos  int
}

var cmdList = []cmd{
	{name: "show", min: 2, process: show},
	{name: "send", min: 2, process: send, complete: keyComplete},
	{name: "chord", min: 2, process: chord, complete: keyComplete},
	{name: "pitch", min: 2, process: pitch},
	{name: "autoreturn", min: 2, process: autoreturn},
	{name: "debug", min: 2, process: debugCmd},
	{name: "quit", min: 1, process: quit},
}

// ProcessCommand executes one command line against core, returning whether
// the REPL should exit.
func ProcessCommand(commandLine string, core *bridge.Core) (bool, error) {
	line := cmdLine{line: commandLine}
	word := line.getWord()

	match := matchList(word)
	if len(match) == 0 {
		return false, errors.New("command not found: " + word)
	}
	if len(match) > 1 {
		return false, errors.New("ambiguous command: " + word)
	}

	return match[0].process(&line, core)
}

// CompleteCmd returns the line editor's completions for the partial command
// line given.
func CompleteCmd(commandLine string) []string {
	line := cmdLine{line: commandLine}
	name := line.getWord()

	if !line.isEOL() && line.line[line.pos-1] == ' ' {
		match := matchList(name)
		if len(match) != 1 || match[0].complete == nil {
			return nil
		}
		return match[0].complete(&line)
	}

	match := matchList(name)
	matches := make([]string, len(match))
	for i, m := range match {
		matches[i] = m.name
	}
	return matches
}

func matchCommand(m cmd, word string) bool {
	if len(word) > len(m.name) {
		return false
	}
	for i := range word {
		if m.name[i] != word[i] {
			return false
		}
	}
	return len(word) >= m.min
}

func matchList(word string) []cmd {
	if word == "" {
		return nil
	}
	var match []cmd
	for _, m := range cmdList {
		if matchCommand(m, word) {
			match = append(match, m)
		}
	}
	return match
}

func (l *cmdLine) isEOL() bool {
	return l.pos >= len(l.line)
}

func (l *cmdLine) skipSpace() {
	for !l.isEOL() && unicode.IsSpace(rune(l.line[l.pos])) {
		l.pos++
	}
}

// getWord consumes and returns the next whitespace-delimited word, lower
// cased, advancing past the trailing space if present.
func (l *cmdLine) getWord() string {
	l.skipSpace()
	start := l.pos
	for !l.isEOL() && !unicode.IsSpace(rune(l.line[l.pos])) {
		l.pos++
	}
	word := l.line[start:l.pos]
	l.skipSpace()
	return strings.ToLower(word)
}

// rest returns everything remaining on the line, unconsumed.
func (l *cmdLine) rest() string {
	l.skipSpace()
	return l.line[l.pos:]
}

func keyComplete(l *cmdLine) []string {
	partial := strings.ToLower(l.rest())
	var out []string
	for _, name := range keys.Names() {
		if strings.HasPrefix(name, partial) {
			out = append(out, name)
		}
	}
	return out
}

func parseKey(name string) (keys.KeyId, error) {
	k, ok := keys.KeyByName(name)
	if !ok {
		return keys.KeyNone, fmt.Errorf("console: unknown key %q", name)
	}
	return k, nil
}

func show(_ *cmdLine, core *bridge.Core) (bool, error) {
	fmt.Println(core.Terminal.Status())
	return false, nil
}

func send(l *cmdLine, core *bridge.Core) (bool, error) {
	name := l.getWord()
	if name == "" {
		return false, errors.New("send requires a key name")
	}
	k, err := parseKey(name)
	if err != nil {
		return false, err
	}
	if err := core.Inject.SendKey(k); err != nil {
		return false, err
	}
	return false, nil
}

func chord(l *cmdLine, core *bridge.Core) (bool, error) {
	holdName := l.getWord()
	keyName := l.getWord()
	if holdName == "" || keyName == "" {
		return false, errors.New("chord requires a hold key and a struck key")
	}
	hold, err := parseKey(holdName)
	if err != nil {
		return false, err
	}
	k, err := parseKey(keyName)
	if err != nil {
		return false, err
	}
	if err := core.Inject.SendChord(hold, k); err != nil {
		return false, err
	}
	return false, nil
}

func pitch(_ *cmdLine, core *bridge.Core) (bool, error) {
	core.Terminal.CyclePitch()
	fmt.Printf("pitch now %dcpi\n", core.Terminal.CPI())
	return false, nil
}

func autoreturn(_ *cmdLine, core *bridge.Core) (bool, error) {
	core.Terminal.ToggleAutoReturn()
	fmt.Printf("autoreturn now %t\n", core.Terminal.AutoReturn())
	return false, nil
}

func debugCmd(l *cmdLine, core *bridge.Core) (bool, error) {
	arg := l.getWord()
	if arg == "" {
		return false, errors.New("debug requires a subsystem name, optionally prefixed with -")
	}
	if err := core.Debug(arg); err != nil {
		return false, err
	}
	return false, nil
}

func quit(_ *cmdLine, _ *bridge.Core) (bool, error) {
	return true, nil
}

// Run launches the interactive REPL against core until the user quits or
// aborts the prompt (Ctrl-D/Ctrl-C).
func Run(core *bridge.Core) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(l string) []string {
		return CompleteCmd(l)
	})

	for {
		command, err := line.Prompt("ttymatrix> ")
		if err == nil {
			line.AppendHistory(command)
			quit, err := ProcessCommand(command, core)
			if err != nil {
				fmt.Println("Error: " + err.Error())
			}
			if quit {
				return
			}
			continue
		}

		if errors.Is(err, liner.ErrPromptAborted) {
			return
		}
		slog.Error("console: error reading line", "error", err)
		return
	}
}
