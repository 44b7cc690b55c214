/*
 * x86boot - Monitor console tests.
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

package monitor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rcornwell/x86boot/boot"
	"github.com/rcornwell/x86boot/runtime"
)

func newConsole(t *testing.T, code []byte) *Console {
	t.Helper()
	buf := make([]byte, boot.SectorSize)
	copy(buf, code)
	buf[510], buf[511] = 0x55, 0xAA
	path := filepath.Join(t.TempDir(), "disk.img")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	disk, err := boot.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { disk.Close() })

	ctx, err := runtime.New(runtime.WithDisk(disk))
	if err != nil {
		t.Fatalf("runtime.New: %v", err)
	}
	return New(ctx)
}

func TestStepAdvancesOneInstruction(t *testing.T) {
	c := newConsole(t, []byte{0xB0, 0x48, 0xF4}) // mov al, 0x48; hlt
	out, err := ProcessCommand("step", c)
	if err != nil {
		t.Fatalf("ProcessCommand: %v", err)
	}
	if c.Steps != 1 {
		t.Fatalf("Steps = %d, want 1", c.Steps)
	}
	if !strings.Contains(out, "stepped") {
		t.Fatalf("output = %q, want a step report", out)
	}
}

func TestRegsReportsRIP(t *testing.T) {
	c := newConsole(t, []byte{0xF4})
	out, err := ProcessCommand("regs", c)
	if err != nil {
		t.Fatalf("ProcessCommand: %v", err)
	}
	if !strings.Contains(out, "rip=") {
		t.Fatalf("output = %q, want rip= field", out)
	}
}

func TestMemDumpsBootSector(t *testing.T) {
	c := newConsole(t, []byte{0xB0, 0x48})
	out, err := ProcessCommand("mem 0x7c00 2", c)
	if err != nil {
		t.Fatalf("ProcessCommand: %v", err)
	}
	if !strings.Contains(out, "b0 48") {
		t.Fatalf("output = %q, want the boot sector's first bytes", out)
	}
}

func TestBreakStopsContinueAtStepCount(t *testing.T) {
	c := newConsole(t, []byte{0x90, 0x90, 0x90, 0x90, 0xF4}) // 4 nops then hlt
	if _, err := ProcessCommand("break 2", c); err != nil {
		t.Fatalf("ProcessCommand(break): %v", err)
	}
	out, err := ProcessCommand("continue", c)
	if err != nil {
		t.Fatalf("ProcessCommand(continue): %v", err)
	}
	if c.Steps != 2 {
		t.Fatalf("Steps = %d, want 2 (stopped at the breakpoint)", c.Steps)
	}
	if !strings.Contains(out, "breakpoint hit") {
		t.Fatalf("output = %q, want a breakpoint report", out)
	}
}

func TestUnknownCommandIsRejected(t *testing.T) {
	c := newConsole(t, []byte{0xF4})
	if _, err := ProcessCommand("unknown-command", c); err == nil {
		t.Fatalf("expected an error for an unrecognized command")
	}
}

func TestQuitSetsFlag(t *testing.T) {
	c := newConsole(t, []byte{0xF4})
	if _, err := ProcessCommand("quit", c); err != nil {
		t.Fatalf("ProcessCommand: %v", err)
	}
	if !c.Quit {
		t.Fatalf("expected Quit to be set")
	}
}
