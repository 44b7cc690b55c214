/*
 * x86boot - Shift and rotate group (0xC0/0xC1/0xD0-0xD3).
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

func opGroup2(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	size := inst.OperandSize
	switch inst.Opcode[0] {
	case 0xC0, 0xD0, 0xD2:
		size = 8
	}

	var count uint64
	switch inst.Opcode[0] {
	case 0xC0, 0xC1:
		count = inst.Imm
	case 0xD0, 0xD1:
		count = 1
	case 0xD2, 0xD3:
		count = uint64(m.Regs.Reg8Low(cpuregs.RCX))
	}
	mask := uint64(0x1F)
	if size == 64 {
		mask = 0x3F
	}
	count &= mask

	v, fault := m.readRM(inst, size)
	if fault != nil {
		return fault
	}
	result := m.shiftApply(decoder.GroupShiftName(inst.RegField), v, count, size)
	return m.writeRM(inst, size, result)
}

func (m *Machine) shiftApply(name string, v, count uint64, size uint8) uint64 {
	if count == 0 {
		return v
	}
	mask := widthMask(size)
	v &= mask
	switch name {
	case "shl", "sal":
		var cf bool
		result := v
		for i := uint64(0); i < count; i++ {
			cf = result&(uint64(1)<<(size-1)) != 0
			result = (result << 1) & mask
		}
		m.Regs.SetCF(cf)
		if count == 1 {
			m.Regs.SetOF(signBit(result, size) != cf)
		}
		m.Regs.SetZF(result == 0)
		m.Regs.SetSF(signBit(result, size))
		m.Regs.SetPF(cpuregs.ParityEven(result))
		return result
	case "shr":
		var cf bool
		result := v
		topBefore := signBit(v, size)
		for i := uint64(0); i < count; i++ {
			cf = result&1 != 0
			result >>= 1
		}
		m.Regs.SetCF(cf)
		if count == 1 {
			m.Regs.SetOF(topBefore)
		}
		m.Regs.SetZF(result == 0)
		m.Regs.SetSF(signBit(result, size))
		m.Regs.SetPF(cpuregs.ParityEven(result))
		return result
	case "sar":
		se := signExtendTo64(v, size)
		var cf bool
		for i := uint64(0); i < count; i++ {
			cf = se&1 != 0
			se >>= 1
		}
		result := uint64(se) & mask
		m.Regs.SetCF(cf)
		if count == 1 {
			m.Regs.SetOF(false)
		}
		m.Regs.SetZF(result == 0)
		m.Regs.SetSF(signBit(result, size))
		m.Regs.SetPF(cpuregs.ParityEven(result))
		return result
	case "rol":
		n := count % uint64(size)
		result := ((v << n) | (v >> (uint64(size) - n))) & mask
		if n != 0 {
			m.Regs.SetCF(result&1 != 0)
		}
		if count == 1 {
			m.Regs.SetOF(signBit(result, size) != (result&1 != 0))
		}
		return result
	case "ror":
		n := count % uint64(size)
		result := ((v >> n) | (v << (uint64(size) - n))) & mask
		if n != 0 {
			m.Regs.SetCF(signBit(result, size))
		}
		if count == 1 {
			m.Regs.SetOF(signBit(result, size) != signBit(result<<1&mask, size))
		}
		return result
	case "rcl":
		ext := (v << 1) | boolBit(m.Regs.CF())
		total := size + 1
		n := count % uint64(total)
		wide := ext & ((uint64(1) << total) - 1)
		rotated := ((wide << n) | (wide >> (uint64(total) - n))) & ((uint64(1) << total) - 1)
		m.Regs.SetCF(rotated&1 != 0)
		result := (rotated >> 1) & mask
		if count == 1 {
			m.Regs.SetOF(signBit(result, size) != m.Regs.CF())
		}
		return result
	case "rcr":
		ext := (boolBit(m.Regs.CF()) << size) | v
		total := size + 1
		n := count % uint64(total)
		wide := ext & ((uint64(1) << total) - 1)
		rotated := ((wide >> n) | (wide << (uint64(total) - n))) & ((uint64(1) << total) - 1)
		m.Regs.SetCF(rotated&(uint64(1)<<size) != 0)
		result := rotated & mask
		if count == 1 {
			m.Regs.SetOF(signBit(result, size) != m.Regs.CF())
		}
		return result
	}
	return v
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
