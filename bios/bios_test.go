/*
 * x86boot - BIOS facade tests.
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

package bios

import (
	"testing"

	"github.com/rcornwell/x86boot/cpuregs"
	"github.com/rcornwell/x86boot/executor"
	"github.com/rcornwell/x86boot/keyboard"
	"github.com/rcornwell/x86boot/memory"
	"github.com/rcornwell/x86boot/video"
)

func newMachine(t *testing.T) *executor.Machine {
	t.Helper()
	mem := memory.New(1 << 20)
	mem.Allocate(0, 1<<20)
	regs := cpuregs.NewState()
	for _, s := range []cpuregs.SegName{cpuregs.CS, cpuregs.DS, cpuregs.ES, cpuregs.SS} {
		seg := regs.Seg(s)
		seg.Desc.Base = 0
		regs.SetSeg(s, seg)
	}
	return executor.New(regs, mem)
}

func TestVideoTeletypeAdvancesFramebuffer(t *testing.T) {
	m := newMachine(t)
	fb := video.New()
	h := &Handler{Video: fb}

	m.Regs.SetReg8High(cpuregs.RAX, 0x0E)
	m.Regs.SetReg8Low(cpuregs.RAX, 'H')
	m.Regs.SetReg8Low(cpuregs.RBX, 0x07)

	if fault := h.Service(0x10, m); fault != nil {
		t.Fatalf("Service faulted: %v", fault)
	}
	_, col := fb.Cursor()
	if col != 1 {
		t.Fatalf("cursor col = %d, want 1 after one teletype char", col)
	}
}

func TestKeyboardBlockingReadParksMachine(t *testing.T) {
	m := newMachine(t)
	keys := keyboard.New()
	h := &Handler{Keys: keys}

	m.Regs.SetReg8High(cpuregs.RAX, 0x00)
	if fault := h.Service(0x16, m); fault != nil {
		t.Fatalf("Service faulted: %v", fault)
	}
	if !m.Halted {
		t.Fatalf("expected machine parked waiting for a key")
	}
	if !keys.Waiting() {
		t.Fatalf("expected Keys.Waiting() true")
	}
}

func TestKeyboardBlockingReadReturnsQueuedKey(t *testing.T) {
	m := newMachine(t)
	keys := keyboard.New()
	keys.Push(0x1E, 'a')
	h := &Handler{Keys: keys}

	m.Regs.SetReg8High(cpuregs.RAX, 0x00)
	if fault := h.Service(0x16, m); fault != nil {
		t.Fatalf("Service faulted: %v", fault)
	}
	if m.Halted {
		t.Fatalf("did not expect the machine to park: a key was already queued")
	}
	if got := m.Regs.Reg8Low(cpuregs.RAX); got != 'a' {
		t.Fatalf("AL = %q, want 'a'", got)
	}
}

func TestDosTerminateHaltsMachine(t *testing.T) {
	m := newMachine(t)
	h := &Handler{}
	m.Regs.SetReg8High(cpuregs.RAX, 0x4C)
	if fault := h.Service(0x21, m); fault != nil {
		t.Fatalf("Service faulted: %v", fault)
	}
	if !m.Halted {
		t.Fatalf("expected INT 21h/4C to halt the run")
	}
}

func TestE820ReportsUsableRAM(t *testing.T) {
	m := newMachine(t)
	h := &Handler{MaxRAM: 0x1000000}
	m.Regs.SetReg8High(cpuregs.RAX, 0xE8)
	m.Regs.SetReg8Low(cpuregs.RAX, 0x20)
	m.Regs.SetReg16(cpuregs.RDI, 0x2000)

	if fault := h.Service(0x15, m); fault != nil {
		t.Fatalf("Service faulted: %v", fault)
	}
	if m.Regs.CF() {
		t.Fatalf("expected CF clear on success")
	}
	length, fault := m.Mem.Read(0x2000+8, memory.W64)
	if fault != nil {
		t.Fatalf("reading length entry faulted: %v", fault)
	}
	if length != h.MaxRAM {
		t.Fatalf("length entry = %#x, want %#x", length, h.MaxRAM)
	}
}
