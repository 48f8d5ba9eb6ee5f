/*
   ttymatrix - main process.

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

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	getopt "github.com/pborman/getopt/v2"
	serial "github.com/daedaluz/goserial"

	"github.com/baljemmett/ttymatrix/bridge"
	"github.com/baljemmett/ttymatrix/clock"
	"github.com/baljemmett/ttymatrix/config"
	"github.com/baljemmett/ttymatrix/console"
	"github.com/baljemmett/ttymatrix/debug"
	"github.com/baljemmett/ttymatrix/logger"
	"github.com/baljemmett/ttymatrix/serialio"
)

var Logger *slog.Logger

// baudRate is the fixed line speed the typewriter's own UART ran at; it is
// not configurable because the hardware on the other end never was either.
const baudRate = serial.B9600

func openTransport(cfg *config.Config) (serialio.Serial, error) {
	switch {
	case cfg.Telnet != "":
		return serialio.ListenTelnet(cfg.Telnet)
	case cfg.Serial != "":
		return serialio.OpenDevice(cfg.Serial, baudRate)
	default:
		pty, slaveFd, err := serialio.OpenPseudoTerminal()
		if err != nil {
			return nil, err
		}
		Logger.Info("ttymatrix: no serial or telnet configured, allocated a pty", "slave_fd", slaveFd)
		return pty, nil
	}
}

func main() {
	optConfig := getopt.StringLong("config", 'c', "ttymatrix.cfg", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optDebug := getopt.StringLong("debug", 'd', "", "Debug subsystems, comma separated")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	cfg := config.Default()
	if *optConfig != "" {
		if _, err := os.Stat(*optConfig); err == nil {
			loaded, err := config.Load(*optConfig)
			if err != nil {
				slog.Error("ttymatrix: loading configuration", "error", err)
				os.Exit(1)
			}
			cfg = loaded
		}
	}

	logPath := *optLogFile
	if logPath == "" {
		logPath = cfg.Logfile
	}
	var file *os.File
	if logPath != "" {
		var err error
		file, err = os.Create(logPath)
		if err != nil {
			slog.Error("ttymatrix: can't create log file", "path", logPath, "error", err)
			os.Exit(1)
		}
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelInfo)
	Logger = slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel, AddSource: false}, false))
	slog.SetDefault(Logger)

	Logger.Info("ttymatrix started")

	debug.SetSink(func(s string) { Logger.Debug(s) })
	if cfg.DebugMask != 0 {
		debug.Enable(cfg.DebugMask)
	}
	for _, name := range strings.Split(*optDebug, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if err := debug.Toggle(name); err != nil {
			Logger.Warn("ttymatrix: debug flag", "error", err)
		}
	}

	transport, err := openTransport(cfg)
	if err != nil {
		Logger.Error("ttymatrix: opening transport", "error", err)
		os.Exit(1)
	}

	clk := clock.NewReal()
	core := bridge.New(transport, clk, cfg.CtrlIndicator)
	if cfg.AutoReturn != core.Terminal.AutoReturn() {
		core.Terminal.ToggleAutoReturn()
	}
	core.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		console.Run(core)
		close(done)
	}()

	select {
	case <-sigChan:
		Logger.Info("ttymatrix: got quit signal")
	case <-done:
		Logger.Info("ttymatrix: console exited")
	}

	Logger.Info("ttymatrix: shutting down")
	core.Stop()
	clk.Stop()
	Logger.Info("ttymatrix: shut down")
}
