/*
 * x86boot - Runtime integration tests.
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

package runtime

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rcornwell/x86boot/boot"
)

// writeBootImage writes a 512-byte boot sector image with the given
// code at offset 0 and the standard 0x55AA signature at 510-511,
// mirroring the teacher's own test-fixture style of building a tiny
// disk image in a temp dir rather than shipping binary test data.
func writeBootImage(t *testing.T, code []byte) string {
	t.Helper()
	buf := make([]byte, boot.SectorSize)
	copy(buf, code)
	buf[510] = 0x55
	buf[511] = 0xAA
	path := filepath.Join(t.TempDir(), "disk.img")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return path
}

// helloWorldProgram exercises the S1 scenario from the spec's testable
// properties: print a character through the video BIOS call, then
// halt. It uses the synthetic 0F FF vv BIOS-call opcode directly
// rather than a real INT 10h/IVT transfer, since that is the encoding
// Step's fast BIOS dispatch path actually recognizes.
func helloWorldProgram() []byte {
	return []byte{
		0xB0, 'H', // mov al, 'H'
		0xB4, 0x0E, // mov ah, 0x0E
		0x0F, 0xFF, 0x10, // synthetic BIOS call, vector 0x10 (video services)
		0xF4, // hlt
	}
}

func TestRunPrintsCharacterThenHalts(t *testing.T) {
	path := writeBootImage(t, helloWorldProgram())
	disk, err := boot.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer disk.Close()

	ctx, err := New(WithDisk(disk))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	outcome := ctx.Run()
	if outcome.Status != StatusHalted {
		t.Fatalf("status = %v, want %v (fault=%v)", outcome.Status, StatusHalted, outcome.Fault)
	}
	_, col := ctx.Video.Cursor()
	if col != 1 {
		t.Fatalf("cursor col = %d, want 1 after printing one character", col)
	}
}

func TestRunTerminatesOnDOSExit(t *testing.T) {
	code := []byte{
		0xB4, 0x4C, // mov ah, 0x4C
		0x0F, 0xFF, 0x21, // synthetic BIOS call, vector 0x21 (DOS services)
	}
	path := writeBootImage(t, code)
	disk, err := boot.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer disk.Close()

	ctx, err := New(WithDisk(disk))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	outcome := ctx.Run()
	if outcome.Status != StatusExited {
		t.Fatalf("status = %v, want %v", outcome.Status, StatusExited)
	}
}

func TestRunParksOnBlockingKeyboardReadThenResumes(t *testing.T) {
	code := []byte{
		0xB4, 0x00, // mov ah, 0x00 (blocking read)
		0x0F, 0xFF, 0x16, // synthetic BIOS call, vector 0x16 (keyboard services)
		0xF4, // hlt
	}
	path := writeBootImage(t, code)
	disk, err := boot.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer disk.Close()

	ctx, err := New(WithDisk(disk))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// No key queued yet: stepping past "mov ah,0" and the BIOS call
	// should park the machine waiting, not halt the run.
	var outcome Outcome
	for i := 0; i < 2; i++ {
		outcome = ctx.Step()
	}
	if outcome.Status != 0 || !ctx.Machine.Halted {
		t.Fatalf("expected the run to keep going while parked on keyboard input, got %v", outcome.Status)
	}
	if !ctx.Keys.Waiting() {
		t.Fatalf("expected Keys.Waiting() true while parked")
	}

	ctx.Keys.Push(0x1E, 'a')
	outcome = ctx.Run()
	if outcome.Status != StatusHalted {
		t.Fatalf("status = %v, want %v after key arrived and HLT executed", outcome.Status, StatusHalted)
	}
}

func TestWithTraceLogsEachInstruction(t *testing.T) {
	path := writeBootImage(t, helloWorldProgram())
	disk, err := boot.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer disk.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, err := New(WithDisk(disk), WithLogger(logger), WithTrace())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if outcome := ctx.Run(); outcome.Status != StatusHalted {
		t.Fatalf("status = %v, want %v", outcome.Status, StatusHalted)
	}
	if !strings.Contains(buf.String(), "trace: ") {
		t.Fatalf("log output = %q, want a trace line per instruction", buf.String())
	}
}

func TestWithoutDiskStartsWithEmptyMemory(t *testing.T) {
	ctx, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if ctx.Machine.Regs.RIP != bootSectorLoadAddr {
		t.Fatalf("RIP = %#x, want %#x", ctx.Machine.Regs.RIP, uint64(bootSectorLoadAddr))
	}
}
