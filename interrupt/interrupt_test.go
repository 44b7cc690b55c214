/*
 * x86boot - Interrupt controller tests.
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

package interrupt

import (
	"testing"

	"github.com/rcornwell/x86boot/cpuregs"
	"github.com/rcornwell/x86boot/executor"
	"github.com/rcornwell/x86boot/memory"
)

func newMachine(t *testing.T) *executor.Machine {
	t.Helper()
	mem := memory.New(1 << 20)
	mem.Allocate(0, 1<<20)
	regs := cpuregs.NewState()
	regs.RIP = 0x7C00
	seg := regs.Seg(cpuregs.CS)
	seg.Desc.Base = 0
	regs.SetSeg(cpuregs.CS, seg)
	regs.SetReg64(cpuregs.RSP, 0x1000)
	ss := regs.Seg(cpuregs.SS)
	ss.Desc.Base = 0
	regs.SetSeg(cpuregs.SS, ss)
	m := executor.New(regs, mem)
	m.Intr = New()
	return m
}

func TestRaiseRealModeIVTTransfer(t *testing.T) {
	m := newMachine(t)
	// IVT entry for vector 0x21: IP=0x4000, CS=0x0050.
	m.Mem.PhysicalWrite(0x21*4, 0x00004000|uint64(0x0050)<<16, memory.W32)

	if fault := m.Intr.Raise(m, 0x21, 0, false); fault != nil {
		t.Fatalf("Raise faulted: %v", fault)
	}
	if m.Regs.RIP != 0x4000 {
		t.Fatalf("RIP = %#x, want 0x4000", m.Regs.RIP)
	}
	if m.Regs.Seg(cpuregs.CS).Selector != 0x0050 {
		t.Fatalf("CS selector = %#x, want 0x0050", m.Regs.Seg(cpuregs.CS).Selector)
	}
	if m.Regs.IF() {
		t.Fatalf("IF should be cleared by interrupt delivery")
	}
}

func TestRaiseThenReturnRoundTrip(t *testing.T) {
	m := newMachine(t)
	m.Mem.PhysicalWrite(0x10*4, 0x00002000|uint64(0x0060)<<16, memory.W32)
	m.Regs.SetIF(true)
	origIP := m.Regs.RIP
	origCS := m.Regs.Seg(cpuregs.CS).Selector

	if fault := m.Intr.Raise(m, 0x10, 0, false); fault != nil {
		t.Fatalf("Raise faulted: %v", fault)
	}
	if fault := m.Intr.Return(m); fault != nil {
		t.Fatalf("Return faulted: %v", fault)
	}
	if m.Regs.RIP != origIP {
		t.Fatalf("RIP = %#x, want %#x after IRET", m.Regs.RIP, origIP)
	}
	if m.Regs.Seg(cpuregs.CS).Selector != origCS {
		t.Fatalf("CS selector not restored")
	}
	if !m.Regs.IF() {
		t.Fatalf("IF should be restored by IRET")
	}
}

func TestRaiseOutOfRangeIDTLimitEscalatesToDoubleFault(t *testing.T) {
	m := newMachine(t)
	m.Regs.CR0 |= cpuregs.CR0PE
	// An IDT limit far too small for vector 0x21's 8-byte gate: the gate
	// read itself faults, which should escalate to #DF and, since that
	// too can't be delivered (same undersized IDT), halt the machine.
	m.Regs.IDTR = cpuregs.DTReg{Base: 0x1000, Limit: 0x10}
	m.Intr.Raise(m, 0x21, 0, false)
	if !m.Halted {
		t.Fatalf("expected triple fault to halt the machine")
	}
}
