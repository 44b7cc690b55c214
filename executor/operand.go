/*
 * x86boot - Operand access.
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

func widthOf(size uint8) memory.Width {
	switch size {
	case 8:
		return memory.W8
	case 16:
		return memory.W16
	case 32:
		return memory.W32
	default:
		return memory.W64
	}
}

func widthMask(size uint8) uint64 {
	if size >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(size)) - 1
}

func signBit(v uint64, size uint8) bool {
	return v&(uint64(1)<<(size-1)) != 0
}

// linearAddr resolves a decoded memory operand to its segment-relative
// linear address, honoring any segment override and the BP/SP-implies-SS
// rule.
func (m *Machine) linearAddr(inst *decoder.Instruction) uint64 {
	ea := decoder.EffectiveAddress(inst, m.Regs, m.Regs.RIP)
	segName := decoder.DefaultSegment(inst)
	base := m.Regs.Seg(segName).Desc.Base
	return base + ea
}

// readRM reads the Ev/Eb/Ew-class operand: a register when Mod==3,
// otherwise a memory operand at the computed linear address.
func (m *Machine) readRM(inst *decoder.Instruction, size uint8) (uint64, *memory.FaultInfo) {
	if inst.Mod == 3 {
		if size == 8 {
			return m.readReg8Field(inst.RM, inst.Prefixes.RexB(), inst.Prefixes.HasRex), nil
		}
		reg := decoder.RegOperandFromField(inst.RM, inst.Prefixes.RexB())
		return m.readReg(reg, size), nil
	}
	addr := m.linearAddr(inst)
	v, fault := m.Mem.Read(addr, widthOf(size))
	if fault != nil {
		return 0, fault
	}
	return v, nil
}

// writeRM writes the Ev/Eb/Ew-class operand.
func (m *Machine) writeRM(inst *decoder.Instruction, size uint8, v uint64) *memory.FaultInfo {
	if inst.Mod == 3 {
		if size == 8 {
			m.writeReg8Field(inst.RM, inst.Prefixes.RexB(), inst.Prefixes.HasRex, uint8(v))
			return nil
		}
		reg := decoder.RegOperandFromField(inst.RM, inst.Prefixes.RexB())
		m.writeReg(reg, size, v)
		return nil
	}
	addr := m.linearAddr(inst)
	return m.Mem.Write(addr, v, widthOf(size))
}

// readReg8Field/writeReg8Field resolve an 8-bit register field,
// honoring the legacy AH/CH/DH/BH aliasing: without any REX prefix,
// field values 4-7 name the high byte of RAX-RBX rather than the low
// byte of RSP-RDI (SPL/BPL/SIL/DIL only become reachable once a REX
// prefix is present, even REX with no bits set).
func (m *Machine) readReg8Field(field uint8, rexExt, hasRex bool) uint64 {
	if !hasRex && field >= 4 {
		return uint64(m.Regs.Reg8High(cpuregs.Reg(field - 4)))
	}
	reg := decoder.RegOperandFromField(field, rexExt)
	return uint64(m.Regs.Reg8Low(reg))
}

func (m *Machine) writeReg8Field(field uint8, rexExt, hasRex bool, v uint8) {
	if !hasRex && field >= 4 {
		m.Regs.SetReg8High(cpuregs.Reg(field-4), v)
		return
	}
	reg := decoder.RegOperandFromField(field, rexExt)
	m.Regs.SetReg8Low(reg, v)
}

// readReg reads a GP register view of the given width.
func (m *Machine) readReg(r cpuregs.Reg, size uint8) uint64 {
	switch size {
	case 8:
		return uint64(m.Regs.Reg8Low(r))
	case 16:
		return uint64(m.Regs.Reg16(r))
	case 32:
		return uint64(m.Regs.Reg32(r))
	default:
		return m.Regs.Reg64(r)
	}
}

// writeReg writes a GP register view of the given width, applying the
// architectural zero-extend-on-32-bit-write rule.
func (m *Machine) writeReg(r cpuregs.Reg, size uint8, v uint64) {
	switch size {
	case 8:
		m.Regs.SetReg8Low(r, uint8(v))
	case 16:
		m.Regs.SetReg16(r, uint16(v))
	case 32:
		m.Regs.SetReg32(r, uint32(v))
	default:
		m.Regs.SetReg64(r, v)
	}
}

// regField reads/writes the Gv/Gb-class operand named by the ModR/M
// reg field (extended by REX.R).
func (m *Machine) readRegField(inst *decoder.Instruction, size uint8) uint64 {
	if size == 8 {
		return m.readReg8Field(inst.RegField, inst.Prefixes.RexR(), inst.Prefixes.HasRex)
	}
	reg := decoder.RegOperandFromField(inst.RegField, inst.Prefixes.RexR())
	return m.readReg(reg, size)
}

func (m *Machine) writeRegField(inst *decoder.Instruction, size uint8, v uint64) {
	if size == 8 {
		m.writeReg8Field(inst.RegField, inst.Prefixes.RexR(), inst.Prefixes.HasRex, uint8(v))
		return
	}
	reg := decoder.RegOperandFromField(inst.RegField, inst.Prefixes.RexR())
	m.writeReg(reg, size, v)
}

// opcodeReg returns the register named by the low 3 bits of the opcode
// byte (REX.B-extended), for regInOpcode-class instructions (PUSH/POP
// r, MOV r,imm, XCHG eAX,r, ...).
func opcodeReg(opcode byte, rexB bool) cpuregs.Reg {
	return decoder.RegOperandFromField(opcode&7, rexB)
}

// opcodeReg8 is opcodeReg's byte-sized counterpart, used by MOV
// r8,Ib (0xB0-0xB7), which honors the same AH/CH/DH/BH aliasing as
// any other byte-sized register field.
func (m *Machine) opcodeReg8(opcode byte, rexB, hasRex bool) uint64 {
	return m.readReg8Field(opcode&7, rexB, hasRex)
}

func (m *Machine) setOpcodeReg8(opcode byte, rexB, hasRex bool, v uint8) {
	m.writeReg8Field(opcode&7, rexB, hasRex, v)
}
