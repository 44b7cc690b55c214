/*
 * x86boot - Opcode dispatch table construction.
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
	"github.com/rcornwell/x86boot/decoder"
	"github.com/rcornwell/x86boot/memory"
)

// createTables builds the table/table0F dispatch arrays, following the
// teacher's [256]func opcode table style: every reachable opcode gets
// an explicit array slot assigned here rather than being resolved by a
// runtime switch in Step.
func (m *Machine) createTables() {
	aluNames := []string{"add", "or", "adc", "sbb", "and", "sub", "xor", "cmp"}
	for i, name := range aluNames {
		base := byte(i * 8)
		m.table[base+0x00] = m.opALURM(name, true, true)
		m.table[base+0x01] = m.opALURM(name, true, false)
		m.table[base+0x02] = m.opALURM(name, false, true)
		m.table[base+0x03] = m.opALURM(name, false, false)
		m.table[base+0x04] = m.opALUAcc(name, true)
		m.table[base+0x05] = m.opALUAcc(name, false)
	}

	for r := byte(0); r < 8; r++ {
		m.table[0x50+r] = opPushReg
		m.table[0x58+r] = opPopReg
		m.table[0x91+r] = opXchgAccReg
		m.table[0xB0+r] = opMovR8Ib
		m.table[0xB8+r] = opMovRIv
		m.table[0x40+r] = opIncDecOpcodeReg(true)
		m.table[0x48+r] = opIncDecOpcodeReg(false)
	}
	m.table[0x90] = opNop

	for i := byte(0); i < 16; i++ {
		m.table[0x70+i] = opJccRel
	}

	m.table[0x68] = opPushImm
	m.table[0x69] = opIMULTwoOrThree
	m.table[0x6A] = opPushImm
	m.table[0x6B] = opIMULTwoOrThree

	m.table[0x80] = opGroup1
	m.table[0x81] = opGroup1
	m.table[0x83] = opGroup1
	m.table[0x84] = opTestRM
	m.table[0x85] = opTestRM
	m.table[0x86] = opXchg
	m.table[0x87] = opXchg
	m.table[0x88] = opMovRegToRM
	m.table[0x89] = opMovRegToRM
	m.table[0x8A] = opMovRMtoReg
	m.table[0x8B] = opMovRMtoReg
	m.table[0x8D] = opLea
	m.table[0x8F] = opPopEv

	m.table[0x98] = opCbw
	m.table[0x99] = opCwd
	m.table[0x9C] = opPushf
	m.table[0x9D] = opPopf

	m.table[0xA0] = opMovMoffs
	m.table[0xA1] = opMovMoffs
	m.table[0xA2] = opMovMoffs
	m.table[0xA3] = opMovMoffs
	m.table[0xA4] = opMovs
	m.table[0xA5] = opMovs
	m.table[0xA6] = opCmps
	m.table[0xA7] = opCmps
	m.table[0xA8] = opTestAcc
	m.table[0xA9] = opTestAcc
	m.table[0xAA] = opStos
	m.table[0xAB] = opStos
	m.table[0xAC] = opLods
	m.table[0xAD] = opLods
	m.table[0xAE] = opScas
	m.table[0xAF] = opScas

	m.table[0xC0] = opGroup2
	m.table[0xC1] = opGroup2
	m.table[0xC2] = opRetImm16
	m.table[0xC3] = opRet
	m.table[0xC6] = opMovEbIb
	m.table[0xC7] = opMovEvIz
	m.table[0xC9] = opLeave
	m.table[0xCC] = opInt3
	m.table[0xCD] = opInt
	m.table[0xCF] = opIret

	m.table[0xD0] = opGroup2
	m.table[0xD1] = opGroup2
	m.table[0xD2] = opGroup2
	m.table[0xD3] = opGroup2

	m.table[0xE8] = opCallRel
	m.table[0xE9] = opJmpRel
	m.table[0xEB] = opJmpRel

	m.table[0xF4] = opHlt
	m.table[0xF6] = opGroup3
	m.table[0xF7] = opGroup3
	m.table[0xFA] = opCli
	m.table[0xFB] = opSti
	m.table[0xFC] = opCld
	m.table[0xFD] = opStd
	m.table[0xFE] = opGroup4
	m.table[0xFF] = opGroup5

	m.table0F[0x0B] = opUd2
	m.table0F[0x1F] = opNop
	for i := byte(0); i < 16; i++ {
		m.table0F[0x40+i] = opCmovcc
		m.table0F[0x80+i] = opJccRel
		m.table0F[0x90+i] = opSetcc
	}
	m.table0F[0xA2] = opCpuid
	m.table0F[0xA3] = opBt
	m.table0F[0xAB] = opBts
	m.table0F[0xAF] = opIMULTwoOrThree
	m.table0F[0xB0] = opCmpxchg
	m.table0F[0xB1] = opCmpxchg
	m.table0F[0xB6] = opMovzx
	m.table0F[0xB7] = opMovzx
	m.table0F[0xBE] = opMovsx
	m.table0F[0xBF] = opMovsx
}

// opIncDecOpcodeReg builds the INC/DEC r16/r32 handler for opcodes
// 0x40-0x4F (reachable only outside long mode, where those bytes are
// REX prefixes instead). CF is preserved, per the INC/DEC invariant.
func opIncDecOpcodeReg(inc bool) opFunc {
	return func(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
		reg := opcodeReg(inst.Opcode[0], false)
		size := inst.OperandSize
		v := m.readReg(reg, size)
		cf := m.Regs.CF()
		var result uint64
		if inc {
			result = m.addWithFlags(v, 1, false, size)
		} else {
			result = m.subWithFlags(v, 1, false, size)
		}
		m.Regs.SetCF(cf)
		m.writeReg(reg, size, result)
		return nil
	}
}
