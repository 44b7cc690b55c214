/*
 * x86boot - Executor tests.
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

package executor

import (
	"testing"

	"github.com/rcornwell/x86boot/cpuregs"
	"github.com/rcornwell/x86boot/memory"
)

func newMachine(t *testing.T, code []byte) *Machine {
	t.Helper()
	mem := memory.New(1 << 20)
	mem.Allocate(0, 1<<20)
	for i, b := range code {
		mem.PhysicalWrite(0x7C00+uint64(i), uint64(b), memory.W8)
	}
	regs := cpuregs.NewState()
	regs.RIP = 0x7C00
	seg := regs.Seg(cpuregs.CS)
	seg.Desc.Base = 0
	regs.SetSeg(cpuregs.CS, seg)
	return New(regs, mem)
}

func TestStepMovImmAndAdd(t *testing.T) {
	// mov ax, 5 ; mov bx, 7 ; add ax, bx
	m := newMachine(t, []byte{0xB8, 0x05, 0x00, 0xBB, 0x07, 0x00, 0x01, 0xD8})
	for i := 0; i < 3; i++ {
		if fault := m.Step(); fault != nil {
			t.Fatalf("step %d faulted: %v", i, fault)
		}
	}
	if got := m.Regs.Reg16(cpuregs.RAX); got != 12 {
		t.Fatalf("AX = %d, want 12", got)
	}
	if m.Regs.CF() || m.Regs.OF() {
		t.Fatalf("unexpected CF/OF after 5+7")
	}
}

func TestStepSubSetsZFAndCF(t *testing.T) {
	// mov ax, 5 ; sub ax, 5
	m := newMachine(t, []byte{0xB8, 0x05, 0x00, 0x2D, 0x05, 0x00})
	for i := 0; i < 2; i++ {
		if fault := m.Step(); fault != nil {
			t.Fatalf("step %d faulted: %v", i, fault)
		}
	}
	if !m.Regs.ZF() {
		t.Fatalf("expected ZF set after 5-5")
	}
	if m.Regs.CF() {
		t.Fatalf("expected CF clear after 5-5")
	}
}

func TestStepPushPopRoundTrip(t *testing.T) {
	// mov ax, 0x1234 ; push ax ; mov ax, 0 ; pop ax
	m := newMachine(t, []byte{
		0xB8, 0x34, 0x12,
		0x50,
		0xB8, 0x00, 0x00,
		0x58,
	})
	m.Regs.SetReg16(cpuregs.RSP, 0x1000)
	ssBase := m.Regs.Seg(cpuregs.SS)
	ssBase.Desc.Base = 0
	m.Regs.SetSeg(cpuregs.SS, ssBase)
	for i := 0; i < 4; i++ {
		if fault := m.Step(); fault != nil {
			t.Fatalf("step %d faulted: %v", i, fault)
		}
	}
	if got := m.Regs.Reg16(cpuregs.RAX); got != 0x1234 {
		t.Fatalf("AX = %#x, want 0x1234", got)
	}
}

func TestStepJccTaken(t *testing.T) {
	// xor ax, ax ; jz +3 ; mov bx, 0x99 (skipped) ; mov cx, 0x42
	m := newMachine(t, []byte{
		0x31, 0xC0,
		0x74, 0x03,
		0xBB, 0x99, 0x00,
		0xB9, 0x42, 0x00,
	})
	for i := 0; i < 3; i++ {
		if fault := m.Step(); fault != nil {
			t.Fatalf("step %d faulted: %v", i, fault)
		}
	}
	if got := m.Regs.Reg16(cpuregs.RBX); got != 0 {
		t.Fatalf("BX = %#x, want 0 (jump should have skipped the mov bx)", got)
	}
	if got := m.Regs.Reg16(cpuregs.RCX); got != 0x42 {
		t.Fatalf("CX = %#x, want 0x42", got)
	}
}

func TestStepUnsupportedOpcodeFaultsUD(t *testing.T) {
	// 0x0F 0x3A 0x0F: unimplemented three-byte opcode
	m := newMachine(t, []byte{0x0F, 0x3A, 0x0F})
	fault := m.Step()
	if fault == nil || fault.Vector != 6 {
		t.Fatalf("expected #UD (vector 6), got %v", fault)
	}
}

func TestStepDivideByZeroFaultsDE(t *testing.T) {
	// xor dx, dx ; xor ax, ax ; xor cx, cx ; div cx  (divisor 0)
	m := newMachine(t, []byte{
		0x31, 0xD2,
		0x31, 0xC0,
		0x31, 0xC9,
		0xF7, 0xF1,
	})
	var fault *memory.FaultInfo
	for i := 0; i < 4; i++ {
		fault = m.Step()
		if i < 3 && fault != nil {
			t.Fatalf("setup step %d faulted: %v", i, fault)
		}
	}
	if fault == nil || fault.Vector != 0 {
		t.Fatalf("expected #DE (vector 0), got %v", fault)
	}
}
