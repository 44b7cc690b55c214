/*
 * x86boot - Diagnostic disassembler
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

// Package disasm renders a decoder.Instruction as a one-line mnemonic
// trace for the monitor console and run logs. It does not re-derive
// opcode names the way the teacher's emu/disassemble package does
// (walking a raw byte stream against its own opcode table) since
// decoder.Instruction already carries the resolved Mnemonic; this
// package only has to format the operands the decoder already broke
// out, the way emu/disassemble formats RR/RX/RS/SI/SS operand shapes
// after its own table lookup.
package disasm

import (
	"fmt"
	"strings"

	"github.com/rcornwell/x86boot/decoder"
	"github.com/rcornwell/x86boot/executor"
	"github.com/rcornwell/x86boot/memory"
)

// Line formats one decoded instruction as "addr: bytes  mnemonic  operands",
// e.g. "00007c00: b0 48                    mov r8,Ib 0x48" (the mnemonic is
// the decoder's table name; a register encoded in the opcode byte is
// not listed among the operands).
func Line(addr uint64, raw []byte, inst *decoder.Instruction) string {
	bytesCol := hexBytes(raw[:inst.Length])
	mnemonic := inst.Mnemonic
	if mnemonic == "" {
		mnemonic = "(unknown)"
	}
	operands := operandString(inst)
	return fmt.Sprintf("%08x: %-24s %-7s %s", addr, bytesCol, mnemonic, operands)
}

// Range disassembles count instructions starting at addr in m's
// memory, using a scratch copy of m's registers so the monitor can
// inspect code ahead of (or behind) the live RIP without disturbing
// execution state.
func Range(m *executor.Machine, addr uint64, count int) (string, error) {
	scratch := *m.Regs
	scratch.RIP = addr
	var lines []string
	for i := 0; i < count; i++ {
		m.Mem.BeginFetch(scratch.RIP)
		inst, err := decoder.Decode(m.Mem, &scratch)
		if err != nil {
			return strings.Join(lines, "\n"), err
		}
		raw := make([]byte, inst.Length)
		for j := range raw {
			v, fault := m.Mem.Read(scratch.RIP+uint64(j), memory.W8)
			if fault != nil {
				return strings.Join(lines, "\n"), fmt.Errorf("read fault at %#x", scratch.RIP+uint64(j))
			}
			raw[j] = byte(v)
		}
		lines = append(lines, Line(scratch.RIP, raw, inst))
		scratch.RIP += uint64(inst.Length)
	}
	return strings.Join(lines, "\n"), nil
}

func hexBytes(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02x", v)
	}
	return strings.Join(parts, " ")
}

// operandString reconstructs a readable operand list from the pieces
// decoder.Decode already separated out: a ModR/M register or memory
// reference (base+index*scale+disp, x86-syntax) and a trailing
// immediate, mirroring emu/disassemble's per-opcode-type operand
// builder but driven off already-decoded fields instead of a second
// pass over the opcode type.
func operandString(inst *decoder.Instruction) string {
	var ops []string

	if inst.HasModRM {
		if inst.Mod == 0b11 {
			ops = append(ops, decoder.RegOperandFromField(inst.RM, inst.Prefixes.RexB()).String())
		} else {
			ops = append(ops, memoryOperand(inst))
		}
	}
	if inst.HasImm {
		ops = append(ops, fmt.Sprintf("%#x", inst.Imm))
	}
	if inst.HasImm2 {
		ops = append(ops, fmt.Sprintf("%#x", inst.Imm2))
	}
	return strings.Join(ops, ", ")
}

func memoryOperand(inst *decoder.Instruction) string {
	var b strings.Builder
	b.WriteByte('[')
	wrote := false
	if inst.RIPRelative {
		b.WriteString("rip")
		wrote = true
	} else {
		if inst.HasBase {
			b.WriteString(inst.Base.String())
			wrote = true
		}
		if inst.HasIndex {
			if wrote {
				b.WriteString("+")
			}
			fmt.Fprintf(&b, "%s*%d", inst.Index.String(), inst.Scale)
			wrote = true
		}
	}
	if inst.HasDisp {
		if wrote {
			if inst.Disp >= 0 {
				b.WriteString("+")
			}
		}
		fmt.Fprintf(&b, "%#x", inst.Disp)
		wrote = true
	}
	if !wrote {
		b.WriteString("0")
	}
	b.WriteByte(']')
	return b.String()
}
