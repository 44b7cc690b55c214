/*
 * x86boot - String instructions (MOVS/CMPS/STOS/LODS/SCAS) with REP.
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

// stringSize returns the per-element width of a string opcode: the
// low bit of the opcode selects byte vs. operand-size width.
func stringSize(inst *decoder.Instruction) uint8 {
	if inst.Opcode[0]&1 == 0 {
		return 8
	}
	return inst.OperandSize
}

func (m *Machine) stringStep(size uint8) uint64 {
	if m.Regs.DF() {
		return ^(uint64(size/8) - 1) // -size/8, two's complement
	}
	return uint64(size / 8)
}

func (m *Machine) siAddr(inst *decoder.Instruction) uint64 {
	segName := cpuregs.DS
	if inst.Prefixes.HasSegOverride {
		segName = inst.Prefixes.SegOverride
	}
	base := m.Regs.Seg(segName).Desc.Base
	si := m.readReg(cpuregs.RSI, inst.AddressSize)
	return base + si
}

func (m *Machine) diAddr() uint64 {
	base := m.Regs.Seg(cpuregs.ES).Desc.Base
	return base
}

func (m *Machine) advanceIndex(reg cpuregs.Reg, inst *decoder.Instruction, size uint8) {
	cur := m.readReg(reg, inst.AddressSize)
	m.writeReg(reg, inst.AddressSize, cur+m.stringStep(size))
}

// withRep wraps a single string-element body with the REP/REPE/REPNE
// iteration the prefixes request. With no REP prefix it runs the body
// exactly once.
func (m *Machine) withRep(inst *decoder.Instruction, repeatOnZF bool, body func() *memory.FaultInfo) *memory.FaultInfo {
	if !inst.Prefixes.RepE && !inst.Prefixes.RepNE {
		return body()
	}
	wantZF := inst.Prefixes.RepE
	for {
		count := m.readReg(cpuregs.RCX, inst.AddressSize)
		if count == 0 {
			return nil
		}
		if fault := body(); fault != nil {
			return fault
		}
		count--
		m.writeReg(cpuregs.RCX, inst.AddressSize, count)
		if repeatOnZF {
			if count == 0 || m.Regs.ZF() != wantZF {
				return nil
			}
		} else if count == 0 {
			return nil
		}
	}
}

func opMovs(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	size := stringSize(inst)
	return m.withRep(inst, false, func() *memory.FaultInfo {
		v, fault := m.Mem.Read(m.siAddr(inst), widthOf(size))
		if fault != nil {
			return fault
		}
		di := m.readReg(cpuregs.RDI, inst.AddressSize)
		if fault := m.Mem.Write(m.diAddr()+di, v, widthOf(size)); fault != nil {
			return fault
		}
		m.advanceIndex(cpuregs.RSI, inst, size)
		m.advanceIndex(cpuregs.RDI, inst, size)
		return nil
	})
}

func opCmps(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	size := stringSize(inst)
	return m.withRep(inst, true, func() *memory.FaultInfo {
		a, fault := m.Mem.Read(m.siAddr(inst), widthOf(size))
		if fault != nil {
			return fault
		}
		di := m.readReg(cpuregs.RDI, inst.AddressSize)
		b, fault := m.Mem.Read(m.diAddr()+di, widthOf(size))
		if fault != nil {
			return fault
		}
		m.subWithFlags(a, b, false, size)
		m.advanceIndex(cpuregs.RSI, inst, size)
		m.advanceIndex(cpuregs.RDI, inst, size)
		return nil
	})
}

func opStos(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	size := stringSize(inst)
	return m.withRep(inst, false, func() *memory.FaultInfo {
		di := m.readReg(cpuregs.RDI, inst.AddressSize)
		v := m.readReg(cpuregs.RAX, size)
		if fault := m.Mem.Write(m.diAddr()+di, v, widthOf(size)); fault != nil {
			return fault
		}
		m.advanceIndex(cpuregs.RDI, inst, size)
		return nil
	})
}

func opLods(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	size := stringSize(inst)
	return m.withRep(inst, false, func() *memory.FaultInfo {
		v, fault := m.Mem.Read(m.siAddr(inst), widthOf(size))
		if fault != nil {
			return fault
		}
		m.writeReg(cpuregs.RAX, size, v)
		m.advanceIndex(cpuregs.RSI, inst, size)
		return nil
	})
}

func opScas(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	size := stringSize(inst)
	return m.withRep(inst, true, func() *memory.FaultInfo {
		di := m.readReg(cpuregs.RDI, inst.AddressSize)
		v, fault := m.Mem.Read(m.diAddr()+di, widthOf(size))
		if fault != nil {
			return fault
		}
		acc := m.readReg(cpuregs.RAX, size)
		m.subWithFlags(acc, v, false, size)
		m.advanceIndex(cpuregs.RDI, inst, size)
		return nil
	})
}
