/*
 * x86boot - Data movement, stack and exchange instructions.
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

// stackWidth is the push/pop unit: the stack segment's default
// operand size, overridden to 64 bits in long mode (where PUSH/POP
// always operate on 8-byte slots regardless of the SS descriptor).
func (m *Machine) stackWidth() uint8 {
	if m.Regs.Mode() == cpuregs.LongMode {
		return 64
	}
	size := m.Regs.SegDefaultSize(cpuregs.SS)
	if size == 0 {
		return 16
	}
	return size
}

func (m *Machine) push(v uint64) *memory.FaultInfo {
	size := m.stackWidth()
	sp := m.Regs.Reg64(cpuregs.RSP) - uint64(size/8)
	m.Regs.SetReg64(cpuregs.RSP, sp)
	base := m.Regs.Seg(cpuregs.SS).Desc.Base
	return m.Mem.Write(base+sp, v, widthOf(size))
}

func (m *Machine) pop() (uint64, *memory.FaultInfo) {
	size := m.stackWidth()
	sp := m.Regs.Reg64(cpuregs.RSP)
	base := m.Regs.Seg(cpuregs.SS).Desc.Base
	v, fault := m.Mem.Read(base+sp, widthOf(size))
	if fault != nil {
		return 0, fault
	}
	m.Regs.SetReg64(cpuregs.RSP, sp+uint64(size/8))
	return v, nil
}

func opMovRMtoReg(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	size := movSize(inst)
	v, fault := m.readRM(inst, size)
	if fault != nil {
		return fault
	}
	m.writeRegField(inst, size, v)
	return nil
}

func opMovRegToRM(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	size := movSize(inst)
	v := m.readRegField(inst, size)
	return m.writeRM(inst, size, v)
}

func movSize(inst *decoder.Instruction) uint8 {
	if inst.Opcode[0]&1 == 0 {
		return 8
	}
	return inst.OperandSize
}

func opMovEbIb(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	return m.writeRM(inst, 8, inst.Imm)
}

func opMovEvIz(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	return m.writeRM(inst, inst.OperandSize, inst.Imm)
}

func opMovR8Ib(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	m.setOpcodeReg8(inst.Opcode[0], inst.Prefixes.RexB(), inst.Prefixes.HasRex, uint8(inst.Imm))
	return nil
}

func opMovRIv(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	reg := opcodeReg(inst.Opcode[0], inst.Prefixes.RexB())
	m.writeReg(reg, inst.OperandSize, inst.Imm)
	return nil
}

func opLea(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	ea := decoder.EffectiveAddress(inst, m.Regs, m.Regs.RIP)
	m.writeRegField(inst, inst.OperandSize, ea)
	return nil
}

func opMovMoffs(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	size := uint8(8)
	if inst.Opcode[0] == 0xA1 || inst.Opcode[0] == 0xA3 {
		size = inst.OperandSize
	}
	segName := decoder.DefaultSegment(inst)
	base := m.Regs.Seg(segName).Desc.Base
	addr := base + inst.Imm
	toMem := inst.Opcode[0] == 0xA2 || inst.Opcode[0] == 0xA3
	if toMem {
		v := m.readReg(cpuregs.RAX, size)
		return m.Mem.Write(addr, v, widthOf(size))
	}
	v, fault := m.Mem.Read(addr, widthOf(size))
	if fault != nil {
		return fault
	}
	m.writeReg(cpuregs.RAX, size, v)
	return nil
}

func opXchg(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	size := uint8(8)
	if inst.Opcode[0] != 0x86 {
		size = inst.OperandSize
	}
	a, fault := m.readRM(inst, size)
	if fault != nil {
		return fault
	}
	b := m.readRegField(inst, size)
	if err := m.writeRM(inst, size, b); err != nil {
		return err
	}
	m.writeRegField(inst, size, a)
	return nil
}

func opXchgAccReg(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	reg := opcodeReg(inst.Opcode[0], inst.Prefixes.RexB())
	size := inst.OperandSize
	a := m.readReg(cpuregs.RAX, size)
	b := m.readReg(reg, size)
	m.writeReg(cpuregs.RAX, size, b)
	m.writeReg(reg, size, a)
	return nil
}

func opPushReg(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	reg := opcodeReg(inst.Opcode[0], inst.Prefixes.RexB())
	return m.push(m.readReg(reg, m.stackWidth()))
}

func opPopReg(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	v, fault := m.pop()
	if fault != nil {
		return fault
	}
	reg := opcodeReg(inst.Opcode[0], inst.Prefixes.RexB())
	m.writeReg(reg, m.stackWidth(), v)
	return nil
}

func opPushImm(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	return m.push(uint64(inst.ImmSigned) & widthMask(m.stackWidth()))
}

func opPopEv(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	v, fault := m.pop()
	if fault != nil {
		return fault
	}
	return m.writeRM(inst, m.stackWidth(), v)
}

func opPushf(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	return m.push(m.Regs.RFlags & widthMask(m.stackWidth()))
}

func opPopf(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	v, fault := m.pop()
	if fault != nil {
		return fault
	}
	const preserved = ^uint64(0x3F7FD5) // bits a POPF at CPL0 may not touch go untouched in this simplified model
	m.Regs.RFlags = (m.Regs.RFlags & preserved) | (v &^ preserved)
	return nil
}

func opLeave(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	size := m.stackWidth()
	bp := m.readReg(cpuregs.RBP, size)
	m.writeReg(cpuregs.RSP, size, bp)
	v, fault := m.pop()
	if fault != nil {
		return fault
	}
	m.writeReg(cpuregs.RBP, size, v)
	return nil
}

func opCbw(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	switch inst.OperandSize {
	case 16:
		v := int8(m.Regs.Reg8Low(cpuregs.RAX))
		m.Regs.SetReg16(cpuregs.RAX, uint16(int16(v)))
	case 32:
		v := int16(m.Regs.Reg16(cpuregs.RAX))
		m.Regs.SetReg32(cpuregs.RAX, uint32(int32(v)))
	default:
		v := int32(m.Regs.Reg32(cpuregs.RAX))
		m.Regs.SetReg64(cpuregs.RAX, uint64(int64(v)))
	}
	return nil
}

func opCwd(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	switch inst.OperandSize {
	case 16:
		v := int16(m.Regs.Reg16(cpuregs.RAX))
		var dx uint16
		if v < 0 {
			dx = 0xFFFF
		}
		m.Regs.SetReg16(cpuregs.RDX, dx)
	case 32:
		v := int32(m.Regs.Reg32(cpuregs.RAX))
		var edx uint32
		if v < 0 {
			edx = 0xFFFFFFFF
		}
		m.Regs.SetReg32(cpuregs.RDX, edx)
	default:
		v := int64(m.Regs.Reg64(cpuregs.RAX))
		var rdx uint64
		if v < 0 {
			rdx = ^uint64(0)
		}
		m.Regs.SetReg64(cpuregs.RDX, rdx)
	}
	return nil
}

func opMovzx(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	srcSize := uint8(8)
	if inst.Opcode[1] == 0xB7 {
		srcSize = 16
	}
	v, fault := m.readRM(inst, srcSize)
	if fault != nil {
		return fault
	}
	m.writeRegField(inst, inst.OperandSize, v&widthMask(srcSize))
	return nil
}

func opMovsx(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	srcSize := uint8(8)
	if inst.Opcode[1] == 0xBF {
		srcSize = 16
	}
	v, fault := m.readRM(inst, srcSize)
	if fault != nil {
		return fault
	}
	se := uint64(signExtendTo64(v, srcSize))
	m.writeRegField(inst, inst.OperandSize, se&widthMask(inst.OperandSize))
	return nil
}

func opCmpxchg(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	size := uint8(8)
	if inst.Opcode[1] != 0xB0 {
		size = inst.OperandSize
	}
	dst, fault := m.readRM(inst, size)
	if fault != nil {
		return fault
	}
	acc := m.readReg(cpuregs.RAX, size)
	m.subWithFlags(acc, dst, false, size)
	if acc == dst {
		src := m.readRegField(inst, size)
		return m.writeRM(inst, size, src)
	}
	m.writeReg(cpuregs.RAX, size, dst)
	return nil
}
