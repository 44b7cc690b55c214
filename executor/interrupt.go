/*
 * x86boot - INT3/INT/IRET, with a built-in real-mode IVT fallback.
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
	"github.com/rcornwell/x86boot/cpuregs"
	"github.com/rcornwell/x86boot/decoder"
	"github.com/rcornwell/x86boot/memory"
)

// realModeIVTEntry reads the 4-byte real-mode IVT entry for vector,
// IDTR.Base relative (always 0 in this emulator's real-mode reset
// state, but honored in case something relocated it).
func (m *Machine) realModeIVTEntry(vector byte) (ip, cs uint16, fault *memory.FaultInfo) {
	addr := m.Regs.IDTR.Base + uint64(vector)*4
	v, f := m.Mem.Read(addr, memory.W32)
	if f != nil {
		return 0, 0, f
	}
	return uint16(v), uint16(v >> 16), nil
}

// raiseRealMode performs the 8086-style interrupt transfer: push
// FLAGS, CS, IP (all 16-bit), clear IF and TF, load CS:IP from the
// IVT. Good enough for the BIOS-call-driven real-mode boot path; full
// protected/long-mode gate delivery (privilege switch, error codes,
// double fault) belongs to the InterruptController this falls back
// from.
func (m *Machine) raiseRealMode(vector byte) *memory.FaultInfo {
	ssBase := m.Regs.Seg(cpuregs.SS).Desc.Base
	sp := m.Regs.Reg16(cpuregs.RSP)

	push16 := func(v uint16) *memory.FaultInfo {
		sp -= 2
		return m.Mem.Write(ssBase+uint64(sp), uint64(v), memory.W16)
	}
	if fault := push16(uint16(m.Regs.RFlags)); fault != nil {
		return fault
	}
	if fault := push16(m.Regs.Seg(cpuregs.CS).Selector); fault != nil {
		return fault
	}
	if fault := push16(uint16(m.Regs.RIP)); fault != nil {
		return fault
	}
	m.Regs.SetReg16(cpuregs.RSP, sp)
	m.Regs.SetIF(false)
	m.Regs.SetTF(false)

	ip, cs, fault := m.realModeIVTEntry(vector)
	if fault != nil {
		return fault
	}
	seg := m.Regs.Seg(cpuregs.CS)
	seg.Selector = cs
	seg.Desc.Base = uint64(cs) << 4
	m.Regs.SetSeg(cpuregs.CS, seg)
	m.Regs.RIP = uint64(ip)
	return nil
}

func (m *Machine) returnRealMode() *memory.FaultInfo {
	ssBase := m.Regs.Seg(cpuregs.SS).Desc.Base
	sp := m.Regs.Reg16(cpuregs.RSP)

	pop16 := func() (uint16, *memory.FaultInfo) {
		v, fault := m.Mem.Read(ssBase+uint64(sp), memory.W16)
		sp += 2
		return uint16(v), fault
	}
	ip, fault := pop16()
	if fault != nil {
		return fault
	}
	cs, fault := pop16()
	if fault != nil {
		return fault
	}
	flags, fault := pop16()
	if fault != nil {
		return fault
	}
	m.Regs.SetReg16(cpuregs.RSP, sp)
	m.Regs.RIP = uint64(ip)
	seg := m.Regs.Seg(cpuregs.CS)
	seg.Selector = cs
	seg.Desc.Base = uint64(cs) << 4
	m.Regs.SetSeg(cpuregs.CS, seg)
	m.Regs.RFlags = (m.Regs.RFlags &^ 0xFFFF) | uint64(flags)
	return nil
}

func opInt3(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	if m.Intr != nil {
		return m.Intr.Raise(m, 3, 0, false)
	}
	return m.raiseRealMode(3)
}

func opInt(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	vector := byte(inst.Imm)
	if m.Intr != nil {
		return m.Intr.Raise(m, vector, 0, false)
	}
	return m.raiseRealMode(vector)
}

func opIret(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	if m.Intr != nil {
		return m.Intr.Return(m)
	}
	return m.returnRealMode()
}
