/*
 * x86boot - Instruction decoder.
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

// Package decoder turns a byte stream fetched from memory.Memory into a
// DecodedInstruction: prefixes, REX, opcode, ModR/M+SIB+displacement,
// and immediate. It is a pure translation step - it never mutates
// cpuregs.State beyond what memory.Memory's fetch cursor already
// tracks, and the only side effect visible to callers is the code
// fetch itself (and any fault that fetch raises). Operand evaluation
// (reading/writing the decoded operands) is the executor's job.
package decoder

import (
	"fmt"

	"github.com/rcornwell/x86boot/cpuregs"
	"github.com/rcornwell/x86boot/memory"
)

// ErrUD is returned (wrapped with detail) when the byte stream does not
// encode a recognized instruction: an opcode this emulator does not
// implement, or an instruction longer than 15 bytes.
type ErrUD struct {
	Reason string
}

func (e *ErrUD) Error() string { return "#UD: " + e.Reason }

// maxInstructionLength bounds the whole encoded instruction, prefixes
// through immediates, per spec.md: real silicon never decodes past 15
// bytes in any mode.
const maxInstructionLength = 15

// Prefixes records every legacy/REX prefix byte recognized ahead of
// the opcode.
type Prefixes struct {
	Lock           bool
	RepNE          bool // 0xF2
	RepE           bool // 0xF3
	HasSegOverride bool
	SegOverride    cpuregs.SegName
	OperandSize66  bool
	AddressSize67  bool
	HasRex         bool
	Rex            byte
}

func (p Prefixes) RexW() bool { return p.HasRex && p.Rex&0x08 != 0 }
func (p Prefixes) RexR() bool { return p.HasRex && p.Rex&0x04 != 0 }
func (p Prefixes) RexX() bool { return p.HasRex && p.Rex&0x02 != 0 }
func (p Prefixes) RexB() bool { return p.HasRex && p.Rex&0x01 != 0 }

// Instruction is the fully decoded form of one x86 instruction: every
// field the executor needs to evaluate operands and carry out the
// opcode's semantics, plus its total encoded Length so the caller can
// advance RIP.
type Instruction struct {
	Prefixes Prefixes

	// Opcode holds up to three opcode bytes. OpcodeLen is 1 for a
	// plain byte, 2 for a 0F xx two-byte opcode, 3 for a 0F 38/3A
	// three-byte opcode. PHPBIOS is set for the synthetic 0F FF vv
	// "call into the BIOS facade" opcode, with vv in Opcode[2].
	Opcode    [3]byte
	OpcodeLen int
	PHPBIOS   bool
	DebugStop bool // the reserved F1 opcode, handed to Machine.Stop

	HasModRM bool
	ModRM    byte
	Mod      uint8
	RegField uint8 // the /reg field: a register or an opcode-group selector
	RM       uint8

	HasSIB   bool
	SIB      byte
	Scale    uint8
	Index    cpuregs.Reg
	Base     cpuregs.Reg
	HasIndex bool
	HasBase  bool

	RIPRelative bool // Mod==00, RM==101 with 64-bit addressing

	HasDisp  bool
	Disp     int64
	DispSize int // 8, 16, or 32

	HasImm    bool
	Imm       uint64
	ImmSigned int64
	ImmSize   int // 8, 16, 32, or 64

	// Second immediate, used only by ENTER (imm16, imm8).
	HasImm2 bool
	Imm2    uint64

	OperandSize uint8 // 16, 32, or 64: effective operand size for this instruction
	AddressSize uint8 // 16, 32, or 64: effective address size

	Length int // total bytes consumed, for RIP advance

	Mnemonic string // diagnostic name, filled from the opcode table; disasm-only

	immKind operandKind // internal: how decodeImmediates should size the trailing immediate
}

// RegOperandFromField resolves which Reg the ModR/M reg field (or a mod==11 r/m
// field) names, honoring REX.R/REX.B extension to access R8-R15.
func RegOperandFromField(field uint8, rexExt bool) cpuregs.Reg {
	n := int(field)
	if rexExt {
		n += 8
	}
	return cpuregs.Reg(n)
}

// decodeState is the mutable cursor used while pulling bytes from
// memory during one Decode call.
type decodeState struct {
	mem   *memory.Memory
	n     int // bytes consumed so far
	bytes [maxInstructionLength]byte
}

// fetch pulls the next byte from the code stream. The returned error
// is either a *memory.FaultInfo (a genuine translation/page fault) or
// an *ErrUD (the 15-byte instruction-length cap was exceeded);
// callers distinguish the two with a type assertion.
func (d *decodeState) fetch() (byte, error) {
	if d.n >= maxInstructionLength {
		return 0, &ErrUD{Reason: "instruction exceeds 15 bytes"}
	}
	b, fault := d.mem.FetchByte()
	if fault != nil {
		return 0, fault
	}
	d.bytes[d.n] = b
	d.n++
	return b, nil
}

// Decode decodes one instruction starting at the memory fetch cursor
// (the caller must have called mem.BeginFetch first). regs supplies
// the current mode and segment default sizes needed to compute
// effective operand/address size.
//
// On error, the caller should type-assert err: a *memory.FaultInfo
// means code fetch faulted (deliver that fault); anything else is an
// undefined-opcode condition (deliver #UD, vector 6).
func Decode(mem *memory.Memory, regs *cpuregs.State) (*Instruction, error) {
	ds := &decodeState{mem: mem}
	inst := &Instruction{}

	mode := regs.Mode()
	defaultSize := regs.SegDefaultSize(cpuregs.CS)
	if mode == cpuregs.LongMode && defaultSize == 64 {
		inst.OperandSize, inst.AddressSize = 32, 64
	} else if defaultSize == 32 {
		inst.OperandSize, inst.AddressSize = 32, 32
	} else {
		inst.OperandSize, inst.AddressSize = 16, 16
	}

	// ---- legacy + REX prefixes ----
	var opcodeByte byte
	for {
		b, err := ds.fetch()
		if err != nil {
			return nil, err
		}
		isPrefix := true
		switch b {
		case 0xF0:
			inst.Prefixes.Lock = true
		case 0xF2:
			inst.Prefixes.RepNE = true
		case 0xF3:
			inst.Prefixes.RepE = true
		case 0x2E:
			inst.Prefixes.HasSegOverride, inst.Prefixes.SegOverride = true, cpuregs.CS
		case 0x36:
			inst.Prefixes.HasSegOverride, inst.Prefixes.SegOverride = true, cpuregs.SS
		case 0x3E:
			inst.Prefixes.HasSegOverride, inst.Prefixes.SegOverride = true, cpuregs.DS
		case 0x26:
			inst.Prefixes.HasSegOverride, inst.Prefixes.SegOverride = true, cpuregs.ES
		case 0x64:
			inst.Prefixes.HasSegOverride, inst.Prefixes.SegOverride = true, cpuregs.FS
		case 0x65:
			inst.Prefixes.HasSegOverride, inst.Prefixes.SegOverride = true, cpuregs.GS
		case 0x66:
			inst.Prefixes.OperandSize66 = true
		case 0x67:
			inst.Prefixes.AddressSize67 = true
		default:
			isPrefix = false
		}
		if isPrefix {
			continue
		}
		if mode == cpuregs.LongMode && b&0xF0 == 0x40 {
			inst.Prefixes.HasRex = true
			inst.Prefixes.Rex = b
			continue
		}
		opcodeByte = b
		break
	}

	if err := decodeOpcode(ds, inst, opcodeByte); err != nil {
		return nil, err
	}

	// Apply 0x66/0x67 toggles, per mode, to the size baseline computed
	// above (spec.md §4.3 step 5).
	applySizeOverrides(inst, mode)

	if inst.HasModRM {
		if err := decodeModRM(ds, inst); err != nil {
			return nil, err
		}
	}

	if err := decodeImmediates(ds, inst); err != nil {
		return nil, err
	}

	inst.Length = ds.n
	return inst, nil
}

func applySizeOverrides(inst *Instruction, mode cpuregs.Mode) {
	base := inst.OperandSize
	switch {
	case mode == cpuregs.LongMode && inst.Prefixes.RexW():
		inst.OperandSize = 64
	case inst.Prefixes.OperandSize66:
		if base == 16 {
			inst.OperandSize = 32
		} else {
			inst.OperandSize = 16
		}
	}
	if inst.Prefixes.AddressSize67 {
		switch inst.AddressSize {
		case 16:
			inst.AddressSize = 32
		case 32:
			inst.AddressSize = 16
		case 64:
			inst.AddressSize = 32
		}
	}
}

func decodeOpcode(ds *decodeState, inst *Instruction, first byte) error {
	if first == 0x0F {
		second, err := ds.fetch()
		if err != nil {
			return err
		}
		if second == 0xFF {
			// Synthetic PHP-BIOS call: 0F FF vv, vv selects the service.
			vec, err := ds.fetch()
			if err != nil {
				return err
			}
			inst.PHPBIOS = true
			inst.OpcodeLen = 3
			inst.Opcode = [3]byte{first, second, vec}
			inst.Mnemonic = "phpbios"
			return nil
		}
		if second == 0x38 || second == 0x3A {
			third, err := ds.fetch()
			if err != nil {
				return err
			}
			inst.OpcodeLen = 3
			inst.Opcode = [3]byte{first, second, third}
			desc, ok := threeByteTable(second, third)
			if !ok {
				return &ErrUD{Reason: fmt.Sprintf("unsupported opcode 0F %02X %02X", second, third)}
			}
			inst.HasModRM = desc.hasModRM
			inst.Mnemonic = desc.name
			return nil
		}
		inst.OpcodeLen = 2
		inst.Opcode = [3]byte{first, second, 0}
		desc, ok := twoByteTable[second]
		if !ok {
			return &ErrUD{Reason: fmt.Sprintf("unsupported opcode 0F %02X", second)}
		}
		inst.HasModRM = desc.hasModRM
		inst.Mnemonic = desc.name
		inst.immKind = desc.imm
		return nil
	}

	if first == 0xF1 {
		inst.DebugStop = true
		inst.OpcodeLen = 1
		inst.Opcode = [3]byte{first, 0, 0}
		inst.Mnemonic = "int1"
		return nil
	}

	inst.OpcodeLen = 1
	inst.Opcode = [3]byte{first, 0, 0}
	desc, ok := primaryTable[first]
	if !ok {
		return &ErrUD{Reason: fmt.Sprintf("unsupported opcode %02X", first)}
	}
	inst.HasModRM = desc.hasModRM
	inst.Mnemonic = desc.name
	inst.immKind = desc.imm
	return nil
}
