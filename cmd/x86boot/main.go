/*
 * x86boot - Main process.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	getopt "github.com/pborman/getopt/v2"

	"github.com/rcornwell/x86boot/boot"
	logger "github.com/rcornwell/x86boot/logger"
	"github.com/rcornwell/x86boot/monitor"
	"github.com/rcornwell/x86boot/runtime"
)

var Logger *slog.Logger

func main() {
	optDisk := getopt.StringLong("disk", 'd', "", "Bootable disk image")
	optEntry := getopt.Uint64Long("entry", 'e', 0x7C00, "Entrypoint linear address")
	optMaxRAM := getopt.Uint64Long("maxram", 'r', 16<<20, "Usable RAM reported via INT 15h/E820")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optMonitor := getopt.BoolLong("monitor", 'm', "Start in the interactive monitor console")
	optTrace := getopt.BoolLong("trace", 't', "Log a disassembly line for every executed instruction")
	optNoSig := getopt.BoolLong("no-signature", 0, "Skip the 0x55AA boot signature check")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if *optLogFile != "" {
		file, _ = os.Create(*optLogFile)
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelInfo)
	Logger = slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel}, false))
	slog.SetDefault(Logger)

	Logger.Info("x86boot started")

	if *optDisk == "" {
		Logger.Error("please specify a bootable disk image with -disk")
		os.Exit(1)
	}
	if _, err := os.Stat(*optDisk); os.IsNotExist(err) {
		Logger.Error("disk image not found", "path", *optDisk)
		os.Exit(1)
	}

	disk, err := boot.Open(*optDisk)
	if err != nil {
		Logger.Error("opening disk image", "error", err)
		os.Exit(1)
	}
	defer disk.Close()

	opts := []runtime.Option{
		runtime.WithDisk(disk),
		runtime.WithEntrypoint(*optEntry),
		runtime.WithMaxRAM(*optMaxRAM),
		runtime.WithLogger(Logger),
	}
	if *optNoSig {
		opts = append(opts, runtime.WithoutSignatureCheck())
	}
	if *optTrace {
		opts = append(opts, runtime.WithTrace())
	}

	ctx, err := runtime.New(opts...)
	if err != nil {
		Logger.Error("building runtime context", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan runtime.Outcome, 1)

	if *optMonitor {
		monitor.ConsoleReader(monitor.New(ctx))
		return
	}

	go func() { done <- ctx.Run() }()

	select {
	case <-sigChan:
		Logger.Info("interrupted, shutting down")
	case outcome := <-done:
		Logger.Info("run finished", "status", outcome.Status.String())
		if outcome.Status == runtime.StatusFatal {
			os.Exit(1)
		}
	}
}
