/*
 * x86boot - Arithmetic/logic instruction semantics.
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

// setLogicFlags applies the flag side effects common to AND/OR/XOR/TEST:
// CF and OF cleared, SF/ZF/PF set from the result.
func (m *Machine) setLogicFlags(result uint64, size uint8) {
	m.Regs.SetCF(false)
	m.Regs.SetOF(false)
	m.Regs.SetSF(signBit(result, size))
	m.Regs.SetZF(result&widthMask(size) == 0)
	m.Regs.SetPF(cpuregs.ParityEven(result))
}

// addWithFlags computes a+b(+carryIn) at the given width and sets
// CF/OF/AF/SF/ZF/PF, mirroring the SDM's ADD/ADC flag definitions.
func (m *Machine) addWithFlags(a, b uint64, carryIn bool, size uint8) uint64 {
	mask := widthMask(size)
	a, b = a&mask, b&mask
	var cin uint64
	if carryIn {
		cin = 1
	}
	sum := a + b + cin
	result := sum & mask


	m.Regs.SetCF(sum > mask)
	m.Regs.SetAF((a^b^result)&0x10 != 0)
	m.Regs.SetSF(signBit(result, size))
	m.Regs.SetZF(result == 0)
	m.Regs.SetPF(cpuregs.ParityEven(result))

	signA, signB, signR := signBit(a, size), signBit(b, size), signBit(result, size)
	m.Regs.SetOF(signA == signB && signR != signA)
	return result
}

// subWithFlags computes a-b(-borrowIn) at the given width and sets
// CF/OF/AF/SF/ZF/PF, mirroring the SDM's SUB/SBB/CMP flag definitions.
func (m *Machine) subWithFlags(a, b uint64, borrowIn bool, size uint8) uint64 {
	mask := widthMask(size)
	a, b = a&mask, b&mask
	var bin uint64
	if borrowIn {
		bin = 1
	}
	diff := a - b - bin
	result := diff & mask

	m.Regs.SetCF(a < b+bin)
	m.Regs.SetAF((a^b^result)&0x10 != 0)
	m.Regs.SetSF(signBit(result, size))
	m.Regs.SetZF(result == 0)
	m.Regs.SetPF(cpuregs.ParityEven(result))

	signA, signB, signR := signBit(a, size), signBit(b, size), signBit(result, size)
	m.Regs.SetOF(signA != signB && signR != signA)
	return result
}

// aluApply performs one of the eight group-1 ALU operations (by name,
// shared between the 00-3D rows and the 80/81/83 immediate-group
// opcodes) and returns the result to write back (CMP/TEST discard it).
func (m *Machine) aluApply(name string, dst, src uint64, size uint8) uint64 {
	switch name {
	case "add":
		return m.addWithFlags(dst, src, false, size)
	case "or":
		r := (dst | src) & widthMask(size)
		m.setLogicFlags(r, size)
		return r
	case "adc":
		return m.addWithFlags(dst, src, m.Regs.CF(), size)
	case "sbb":
		return m.subWithFlags(dst, src, m.Regs.CF(), size)
	case "and":
		r := (dst & src) & widthMask(size)
		m.setLogicFlags(r, size)
		return r
	case "sub":
		return m.subWithFlags(dst, src, false, size)
	case "xor":
		r := (dst ^ src) & widthMask(size)
		m.setLogicFlags(r, size)
		return r
	case "cmp":
		m.subWithFlags(dst, src, false, size)
		return dst
	default:
		return dst
	}
}

// opALURM handles the Eb,Gb / Ev,Gv / Gb,Eb / Gv,Ev row forms: the
// direction and operand width are derived from the low 2 bits and
// size bit of the opcode, per the classic x86 ALU row layout.
func (m *Machine) opALURM(name string, toMemory bool, byteWidth bool) opFunc {
	return func(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
		size := inst.OperandSize
		if byteWidth {
			size = 8
		}
		if toMemory {
			dst, fault := m.readRM(inst, size)
			if fault != nil {
				return fault
			}
			src := m.readRegField(inst, size)
			result := m.aluApply(name, dst, src, size)
			if name != "cmp" {
				return m.writeRM(inst, size, result)
			}
			return nil
		}
		dst := m.readRegField(inst, size)
		src, fault := m.readRM(inst, size)
		if fault != nil {
			return fault
		}
		result := m.aluApply(name, dst, src, size)
		if name != "cmp" {
			m.writeRegField(inst, size, result)
		}
		return nil
	}
}

// opALUAcc handles the AL,Ib / eAX,Iz immediate-to-accumulator forms.
func (m *Machine) opALUAcc(name string, byteWidth bool) opFunc {
	return func(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
		size := inst.OperandSize
		if byteWidth {
			size = 8
		}
		dst := m.readReg(cpuregs.RAX, size)
		result := m.aluApply(name, dst, inst.Imm, size)
		if name != "cmp" {
			m.writeReg(cpuregs.RAX, size, result)
		}
		return nil
	}
}

// opGroup1 handles 0x80/0x81/0x83: Eb/Ev op Ib/Iz/Ib(signext),
// operation selected by RegField.
func opGroup1(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	size := inst.OperandSize
	if inst.Opcode[0] == 0x80 {
		size = 8
	}
	name := decoder.GroupALUName(inst.RegField)
	dst, fault := m.readRM(inst, size)
	if fault != nil {
		return fault
	}
	result := m.aluApply(name, dst, inst.Imm, size)
	if name != "cmp" {
		return m.writeRM(inst, size, result)
	}
	return nil
}

// opTestRM handles 0x84/0x85 (register/memory forms): AND without
// writeback. The accumulator-immediate form (0xA8/0xA9) is opTestAcc.
func opTestRM(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	size := inst.OperandSize
	if inst.Opcode[0] == 0x84 {
		size = 8
	}
	dst, fault := m.readRM(inst, size)
	if fault != nil {
		return fault
	}
	src := m.readRegField(inst, size)
	m.setLogicFlags(dst&src&widthMask(size), size)
	return nil
}

func opTestAcc(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	size := inst.OperandSize
	if inst.Opcode[0] == 0xA8 {
		size = 8
	}
	dst := m.readReg(cpuregs.RAX, size)
	m.setLogicFlags(dst&inst.Imm&widthMask(size), size)
	return nil
}

// opGroup3 handles 0xF6/0xF7: TEST/NOT/NEG/MUL/IMUL/DIV/IDIV Eb/Ev,
// selected by RegField.
func opGroup3(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	size := inst.OperandSize
	if inst.Opcode[0] == 0xF6 {
		size = 8
	}
	v, fault := m.readRM(inst, size)
	if fault != nil {
		return fault
	}
	switch inst.RegField {
	case 0, 1: // TEST
		m.setLogicFlags(v&inst.Imm&widthMask(size), size)
		return nil
	case 2: // NOT
		return m.writeRM(inst, size, (^v)&widthMask(size))
	case 3: // NEG
		result := m.subWithFlags(0, v, false, size)
		m.Regs.SetCF(v != 0)
		return m.writeRM(inst, size, result)
	case 4: // MUL
		return m.mulUnsigned(inst, v, size)
	case 5: // IMUL
		return m.imulOneOperand(inst, v, size)
	case 6: // DIV
		return m.divUnsigned(v, size)
	case 7: // IDIV
		return m.idivSigned(v, size)
	}
	return udFault()
}

func (m *Machine) mulUnsigned(inst *decoder.Instruction, src uint64, size uint8) *memory.FaultInfo {
	acc := m.readReg(cpuregs.RAX, size)
	product := acc * src
	hi := product >> size
	m.writeReg(cpuregs.RAX, size, product&widthMask(size))
	if size != 8 {
		m.writeReg(cpuregs.RDX, size, hi&widthMask(size))
	} else {
		m.Regs.SetReg16(cpuregs.RAX, uint16(product))
	}
	overflow := hi != 0
	m.Regs.SetCF(overflow)
	m.Regs.SetOF(overflow)
	return nil
}

func (m *Machine) imulOneOperand(inst *decoder.Instruction, src uint64, size uint8) *memory.FaultInfo {
	acc := int64(signExtendTo64(m.readReg(cpuregs.RAX, size), size))
	s := int64(signExtendTo64(src, size))
	product := acc * s
	low := uint64(product) & widthMask(size)
	m.writeReg(cpuregs.RAX, size, low)
	var hi uint64
	if size != 8 {
		hi = uint64(product>>size) & widthMask(size)
		m.writeReg(cpuregs.RDX, size, hi)
	} else {
		m.Regs.SetReg16(cpuregs.RAX, uint16(product))
		hi = uint64(product >> 8)
	}
	overflow := int64(signExtendTo64(low, size)) != product
	m.Regs.SetCF(overflow)
	m.Regs.SetOF(overflow)
	return nil
}

func signExtendTo64(v uint64, size uint8) uint64 {
	shift := uint(64 - size)
	return uint64(int64(v<<shift) >> shift)
}

func (m *Machine) divUnsigned(src uint64, size uint8) *memory.FaultInfo {
	if src == 0 {
		return deFault()
	}
	var dividend uint64
	if size == 8 {
		dividend = uint64(m.Regs.Reg16(cpuregs.RAX))
	} else {
		lo := m.readReg(cpuregs.RAX, size)
		hi := m.readReg(cpuregs.RDX, size)
		// hi<<64 is 0 per the Go shift spec when size==64, so a 64-bit
		// DIV divides RAX alone - a true 128-bit RDX:RAX dividend needs
		// wider-than-uint64 arithmetic this emulator does not carry.
		dividend = (hi << size) | lo
	}
	q := dividend / src
	r := dividend % src
	if q > widthMask(size) {
		return deFault()
	}
	if size == 8 {
		m.Regs.SetReg8Low(cpuregs.RAX, uint8(q))
		m.Regs.SetReg8High(cpuregs.RAX, uint8(r))
	} else {
		m.writeReg(cpuregs.RAX, size, q)
		m.writeReg(cpuregs.RDX, size, r)
	}
	return nil
}

func (m *Machine) idivSigned(src uint64, size uint8) *memory.FaultInfo {
	s := int64(signExtendTo64(src, size))
	if s == 0 {
		return deFault()
	}
	var dividend int64
	switch {
	case size == 8:
		dividend = int64(int16(m.Regs.Reg16(cpuregs.RAX)))
	case size == 64:
		// A true 128-bit RDX:RAX dividend needs wider-than-int64
		// arithmetic; boot-targeted 64-bit code always precedes IDIV
		// with CQO, so RDX already holds RAX's sign extension and
		// dividing RAX alone gives the same quotient/remainder.
		dividend = int64(m.Regs.Reg64(cpuregs.RAX))
	default:
		lo := m.readReg(cpuregs.RAX, size)
		hi := m.readReg(cpuregs.RDX, size)
		dividend = int64((hi << size) | lo)
		shift := uint(64 - 2*size)
		dividend = dividend << shift >> shift
	}
	q := dividend / s
	r := dividend % s
	if size == 8 {
		m.Regs.SetReg8Low(cpuregs.RAX, uint8(q))
		m.Regs.SetReg8High(cpuregs.RAX, uint8(r))
	} else {
		m.writeReg(cpuregs.RAX, size, uint64(q)&widthMask(size))
		m.writeReg(cpuregs.RDX, size, uint64(r)&widthMask(size))
	}
	return nil
}

// opIMULTwoOrThree handles 0x0F 0xAF (Gv,Ev) and 0x69/0x6B (Gv,Ev,Iz/Ib).
func opIMULTwoOrThree(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	size := inst.OperandSize
	src, fault := m.readRM(inst, size)
	if fault != nil {
		return fault
	}
	var dst uint64
	threeOperand := inst.Opcode[0] == 0x69 || inst.Opcode[0] == 0x6B
	if threeOperand {
		dst = inst.Imm
	} else {
		dst = m.readRegField(inst, size)
	}
	a := int64(signExtendTo64(src, size))
	b := int64(signExtendTo64(dst, size))
	product := a * b
	result := uint64(product) & widthMask(size)
	m.writeRegField(inst, size, result)
	overflow := int64(signExtendTo64(result, size)) != product
	m.Regs.SetCF(overflow)
	m.Regs.SetOF(overflow)
	return nil
}
