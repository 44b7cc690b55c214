/*
 * x86boot - Control flow, interrupt entry and system instructions.
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

func opJccRel(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	var cc uint8
	if inst.OpcodeLen >= 2 {
		cc = inst.Opcode[1] & 0xF
	} else {
		cc = inst.Opcode[0] & 0xF
	}
	if m.evalCond(cc) {
		m.Regs.RIP = uint64(int64(m.Regs.RIP) + inst.ImmSigned)
	}
	return nil
}

func opJmpRel(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	m.Regs.RIP = uint64(int64(m.Regs.RIP) + inst.ImmSigned)
	return nil
}

func opJmpEv(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	target, fault := m.readRM(inst, inst.OperandSize)
	if fault != nil {
		return fault
	}
	m.Regs.RIP = target
	return nil
}

func opCallRel(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	ret := m.Regs.RIP
	if fault := m.push(ret); fault != nil {
		return fault
	}
	m.Regs.RIP = uint64(int64(ret) + inst.ImmSigned)
	return nil
}

func opCallEv(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	target, fault := m.readRM(inst, inst.OperandSize)
	if fault != nil {
		return fault
	}
	if fault := m.push(m.Regs.RIP); fault != nil {
		return fault
	}
	m.Regs.RIP = target
	return nil
}

func opRet(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	target, fault := m.pop()
	if fault != nil {
		return fault
	}
	m.Regs.RIP = target
	return nil
}

func opRetImm16(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	target, fault := m.pop()
	if fault != nil {
		return fault
	}
	m.Regs.RIP = target
	sp := m.Regs.Reg64(cpuregs.RSP) + inst.Imm
	m.Regs.SetReg64(cpuregs.RSP, sp)
	return nil
}

func opHlt(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	m.Halted = true
	return nil
}

func opCli(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	m.Regs.SetIF(false)
	return nil
}

func opSti(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	m.Regs.SetIF(true)
	return nil
}

func opCld(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	m.Regs.SetDF(false)
	return nil
}

func opStd(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	m.Regs.SetDF(true)
	return nil
}

func opNop(m *Machine, inst *decoder.Instruction) *memory.FaultInfo { return nil }

func opSetcc(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	var v uint64
	if m.evalCond(inst.Opcode[1]) {
		v = 1
	}
	return m.writeRM(inst, 8, v)
}

func opCmovcc(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	src, fault := m.readRM(inst, inst.OperandSize)
	if fault != nil {
		return fault
	}
	if m.evalCond(inst.Opcode[1]) {
		m.writeRegField(inst, inst.OperandSize, src)
	}
	return nil
}

func opUd2(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	return udFault()
}

// opCpuid returns a minimal, static response: leaf 0 reports the vendor
// string "x86bootCPU  " (EBX, EDX, ECX), and every other leaf gets one
// fixed version identifier with EDX bits 0 and 29 and ECX bit 29 set
// (EDX bit 29 reads as the long-mode bit when leaf 0x80000001 is asked
// for). Good enough for boot loaders that probe CPUID only to branch
// on long-mode support.
func opCpuid(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	switch uint32(m.Regs.Reg32(cpuregs.RAX)) {
	case 0:
		m.Regs.SetReg32(cpuregs.RAX, 1)
		m.Regs.SetReg32(cpuregs.RBX, 0x62363878) // "x86b"
		m.Regs.SetReg32(cpuregs.RDX, 0x43746f6f) // "ootC"
		m.Regs.SetReg32(cpuregs.RCX, 0x20205550) // "PU  "
	default:
		m.Regs.SetReg32(cpuregs.RAX, 0x000106A0)
		m.Regs.SetReg32(cpuregs.RBX, 0)
		m.Regs.SetReg32(cpuregs.RCX, 1<<29) // LM bit surfaced in the extended leaf normally; kept simple here
		m.Regs.SetReg32(cpuregs.RDX, (1<<0)|(1<<29))
	}
	return nil
}

func opBt(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	size := inst.OperandSize
	dst, fault := m.readRM(inst, size)
	if fault != nil {
		return fault
	}
	bit := m.readRegField(inst, size) % uint64(size)
	m.Regs.SetCF(dst&(1<<bit) != 0)
	return nil
}

func opBts(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	size := inst.OperandSize
	dst, fault := m.readRM(inst, size)
	if fault != nil {
		return fault
	}
	bit := m.readRegField(inst, size) % uint64(size)
	m.Regs.SetCF(dst&(1<<bit) != 0)
	return m.writeRM(inst, size, dst|(1<<bit))
}

// opGroup5 handles 0xFF: INC/DEC Ev (shared with group4's Eb form via
// opGroup4), CALL/JMP near-indirect, and PUSH Ev. Far call/jmp (reg 3
// and 5) are not implemented: none of this emulator's boot targets
// chain through a memory-indirect far transfer.
func opGroup5(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	switch inst.RegField {
	case 0, 1:
		return opIncDecRM(m, inst, inst.OperandSize)
	case 2:
		return opCallEv(m, inst)
	case 4:
		return opJmpEv(m, inst)
	case 6:
		v, fault := m.readRM(inst, inst.OperandSize)
		if fault != nil {
			return fault
		}
		return m.push(v)
	default:
		return udFault()
	}
}

func opGroup4(m *Machine, inst *decoder.Instruction) *memory.FaultInfo {
	if inst.RegField != 0 && inst.RegField != 1 {
		return udFault()
	}
	return opIncDecRM(m, inst, 8)
}

func opIncDecRM(m *Machine, inst *decoder.Instruction, size uint8) *memory.FaultInfo {
	v, fault := m.readRM(inst, size)
	if fault != nil {
		return fault
	}
	cf := m.Regs.CF()
	var result uint64
	if inst.RegField == 0 {
		result = m.addWithFlags(v, 1, false, size)
	} else {
		result = m.subWithFlags(v, 1, false, size)
	}
	m.Regs.SetCF(cf) // INC/DEC never touch CF
	return m.writeRM(inst, size, result)
}
