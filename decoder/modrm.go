/*
 * x86boot - ModR/M, SIB, displacement and immediate decode.
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

package decoder

import (
	"fmt"

	"github.com/rcornwell/x86boot/cpuregs"
)

func (d *decodeState) fetchN(n int) (uint64, error) {
	var v uint64
	for i := 0; i < n; i++ {
		b, err := d.fetch()
		if err != nil {
			return 0, err
		}
		v |= uint64(b) << (8 * i)
	}
	return v, nil
}

func signExtend(v uint64, bits int) int64 {
	shift := uint(64 - bits)
	return int64(v<<shift) >> shift
}

// decodeModRM reads the ModR/M byte and, when the addressing mode
// calls for it, the SIB byte and displacement.
func decodeModRM(ds *decodeState, inst *Instruction) error {
	b, err := ds.fetch()
	if err != nil {
		return err
	}
	inst.ModRM = b
	inst.Mod = b >> 6
	inst.RegField = (b >> 3) & 7
	inst.RM = b & 7

	if inst.Mod == 3 {
		// Register-direct operand: RM names a GP register, extended by
		// REX.B. No memory addressing to compute.
		return nil
	}

	if inst.AddressSize == 16 {
		return decodeModRM16(ds, inst)
	}
	return decodeModRMFull(ds, inst)
}

// decodeModRM16 implements the legacy 16-bit ModR/M addressing table
// (no SIB byte exists in 16-bit addressing).
func decodeModRM16(ds *decodeState, inst *Instruction) error {
	setBase := func(r cpuregs.Reg) { inst.HasBase, inst.Base = true, r }
	setIndex := func(r cpuregs.Reg) { inst.HasIndex, inst.Index = true, r }

	switch inst.RM {
	case 0:
		setBase(cpuregs.RBX)
		setIndex(cpuregs.RSI)
	case 1:
		setBase(cpuregs.RBX)
		setIndex(cpuregs.RDI)
	case 2:
		setBase(cpuregs.RBP)
		setIndex(cpuregs.RSI)
	case 3:
		setBase(cpuregs.RBP)
		setIndex(cpuregs.RDI)
	case 4:
		setBase(cpuregs.RSI)
	case 5:
		setBase(cpuregs.RDI)
	case 6:
		if inst.Mod == 0 {
			v, err := ds.fetchN(2)
			if err != nil {
				return err
			}
			inst.HasDisp, inst.DispSize, inst.Disp = true, 16, signExtend(v, 16)
			return nil
		}
		setBase(cpuregs.RBP)
	case 7:
		setBase(cpuregs.RBX)
	}

	switch inst.Mod {
	case 1:
		v, err := ds.fetchN(1)
		if err != nil {
			return err
		}
		inst.HasDisp, inst.DispSize, inst.Disp = true, 8, signExtend(v, 8)
	case 2:
		v, err := ds.fetchN(2)
		if err != nil {
			return err
		}
		inst.HasDisp, inst.DispSize, inst.Disp = true, 16, signExtend(v, 16)
	}
	return nil
}

// decodeModRMFull implements 32/64-bit ModR/M addressing, including
// the SIB byte and RIP-relative addressing.
func decodeModRMFull(ds *decodeState, inst *Instruction) error {
	rexB := inst.Prefixes.RexB()
	rexX := inst.Prefixes.RexX()

	if inst.RM == 4 {
		sib, err := ds.fetch()
		if err != nil {
			return err
		}
		inst.HasSIB = true
		inst.SIB = sib
		scale := sib >> 6
		indexField := (sib >> 3) & 7
		baseField := sib & 7

		inst.Scale = 1 << scale
		if !(indexField == 4 && !rexX) {
			inst.HasIndex = true
			inst.Index = RegOperandFromField(indexField, rexX)
		}
		if baseField == 5 && inst.Mod == 0 {
			v, err := ds.fetchN(4)
			if err != nil {
				return err
			}
			inst.HasDisp, inst.DispSize, inst.Disp = true, 32, signExtend(v, 32)
		} else {
			inst.HasBase = true
			inst.Base = RegOperandFromField(baseField, rexB)
		}
	} else if inst.Mod == 0 && inst.RM == 5 {
		v, err := ds.fetchN(4)
		if err != nil {
			return err
		}
		inst.HasDisp, inst.DispSize, inst.Disp = true, 32, signExtend(v, 32)
		if inst.AddressSize == 64 {
			inst.RIPRelative = true
		}
	} else {
		inst.HasBase = true
		inst.Base = RegOperandFromField(inst.RM, rexB)
	}

	switch inst.Mod {
	case 1:
		v, err := ds.fetchN(1)
		if err != nil {
			return err
		}
		inst.HasDisp, inst.DispSize, inst.Disp = true, 8, signExtend(v, 8)
	case 2:
		v, err := ds.fetchN(4)
		if err != nil {
			return err
		}
		inst.HasDisp, inst.DispSize, inst.Disp = true, 32, signExtend(v, 32)
	}
	return nil
}

// decodeImmediates reads the trailing immediate/displacement bytes per
// inst.immKind, resolving opcode-group special cases (which depend on
// RegField, now known after ModR/M decode) before sizing them.
func decodeImmediates(ds *decodeState, inst *Instruction) error {
	kind := inst.immKind
	if kind == immGroup {
		kind = groupImmKind(inst)
	}

	switch kind {
	case immNone:
		return nil
	case immI8:
		v, err := ds.fetchN(1)
		if err != nil {
			return err
		}
		inst.HasImm, inst.ImmSize, inst.Imm = true, 8, v
	case immI8Signed:
		v, err := ds.fetchN(1)
		if err != nil {
			return err
		}
		se := signExtend(v, 8)
		inst.HasImm, inst.ImmSize = true, 8
		inst.ImmSigned = se
		inst.Imm = uint64(se)
	case immZ:
		width := 32
		if inst.OperandSize == 16 {
			width = 16
		}
		v, err := ds.fetchN(width / 8)
		if err != nil {
			return err
		}
		inst.HasImm, inst.ImmSize = true, width
		inst.ImmSigned = signExtend(v, width)
		inst.Imm = v
	case immFull:
		width := int(inst.OperandSize)
		v, err := ds.fetchN(width / 8)
		if err != nil {
			return err
		}
		inst.HasImm, inst.ImmSize, inst.Imm = true, width, v
	case imm16Fixed:
		v, err := ds.fetchN(2)
		if err != nil {
			return err
		}
		inst.HasImm, inst.ImmSize, inst.Imm = true, 16, v
	case relB:
		v, err := ds.fetchN(1)
		if err != nil {
			return err
		}
		inst.HasImm, inst.ImmSize = true, 8
		inst.ImmSigned = signExtend(v, 8)
		inst.Imm = v
	case relZ:
		width := 32
		if inst.OperandSize == 16 {
			width = 16
		}
		v, err := ds.fetchN(width / 8)
		if err != nil {
			return err
		}
		inst.HasImm, inst.ImmSize = true, width
		inst.ImmSigned = signExtend(v, width)
		inst.Imm = v
	case moffsAddr:
		width := int(inst.AddressSize) / 8
		v, err := ds.fetchN(width)
		if err != nil {
			return err
		}
		inst.HasImm, inst.ImmSize, inst.Imm = true, int(inst.AddressSize), v
	default:
		return &ErrUD{Reason: fmt.Sprintf("unresolved immediate kind %d", kind)}
	}
	return nil
}

// groupImmKind resolves the real immediate kind of an opcode-group
// instruction now that RegField is known.
func groupImmKind(inst *Instruction) operandKind {
	switch inst.Opcode[0] {
	case 0x80:
		return immI8
	case 0x81:
		return immZ
	case 0x83:
		return immI8Signed
	case 0xF6:
		if inst.RegField == 0 || inst.RegField == 1 {
			return immI8
		}
		return immNone
	case 0xF7:
		if inst.RegField == 0 || inst.RegField == 1 {
			return immZ
		}
		return immNone
	}
	return immNone
}

// GroupALUName, GroupShiftName, GroupUnaryName, GroupFFName expose the
// group mnemonic tables to the executor, which already has RegField
// and the raw opcode byte available.
func GroupALUName(reg uint8) string   { return groupALUNames[reg&7] }
func GroupShiftName(reg uint8) string { return groupShiftNames[reg&7] }
func GroupUnaryName(reg uint8) string { return groupF7Names[reg&7] }
func GroupFFName(reg uint8) string    { return groupFFNames[reg&7] }
