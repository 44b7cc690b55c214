/*
 * x86boot - Effective address computation.
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

import "github.com/rcornwell/x86boot/cpuregs"

// EffectiveAddress computes the segment-relative effective address of
// a memory operand decoded from ModR/M+SIB+displacement. nextRIP is
// the linear address of the byte following this instruction, used by
// RIP-relative addressing (64-bit mode only); callers outside 64-bit
// mode may pass 0.
//
// The caller (executor) is responsible for adding the selected
// segment's base and for any segment-limit checking: this package
// only resolves the ModR/M addressing arithmetic, since choosing which
// segment applies (explicit override, or SS for stack-implied
// operands, or ES for string-destination operands) is an executor
// concern tied to the specific opcode.
func EffectiveAddress(inst *Instruction, regs *cpuregs.State, nextRIP uint64) uint64 {
	var addr uint64
	if inst.RIPRelative {
		addr = nextRIP + uint64(inst.Disp)
	} else {
		if inst.HasBase {
			addr += regs.Reg64(inst.Base)
		}
		if inst.HasIndex {
			addr += regs.Reg64(inst.Index) * uint64(inst.Scale)
		}
		addr += uint64(inst.Disp)
	}
	return addr & addressSizeMask(inst.AddressSize)
}

func addressSizeMask(size uint8) uint64 {
	switch size {
	case 16:
		return 0xFFFF
	case 32:
		return 0xFFFFFFFF
	default:
		return ^uint64(0)
	}
}

// DefaultSegment returns which segment register governs a decoded
// memory operand absent an explicit override: SS when the addressing
// mode's base register is RBP/RSP (the classic "BP defaults to SS"
// rule, extended to ESP/RSP-based addressing), DS otherwise.
func DefaultSegment(inst *Instruction) cpuregs.SegName {
	if inst.Prefixes.HasSegOverride {
		return inst.Prefixes.SegOverride
	}
	if inst.HasBase && (inst.Base == cpuregs.RBP || inst.Base == cpuregs.RSP) {
		return cpuregs.SS
	}
	return cpuregs.DS
}
