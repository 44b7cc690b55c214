/*
 * x86boot - Opcode tables.
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

// operandKind classifies how decodeImmediates should size (and sign
// handle) the bytes trailing the ModR/M+SIB+displacement, mirroring
// the Intel SDM's Ib/Iz/Iv/Jb/Jz encoding notation.
type operandKind int

const (
	immNone operandKind = iota
	immI8               // one byte, zero-extended (TEST AL,Ib and similar)
	immI8Signed         // one byte, sign-extended to operand size (push Ib, imul Ib, group1 0x83)
	immZ                // 16 bits in a 16-bit operand size instruction, else 32 bits
	immFull             // operand-size width (MOV r,imm: 16/32/64)
	imm16Fixed          // always 16 bits regardless of operand size (RET Iw)
	relB                // rel8 branch displacement
	relZ                // rel16/rel32 branch displacement, per immZ width rule
	moffsAddr           // a direct address sized to the effective address size (A0-A3)
	immGroup            // opcode-group instruction: real kind depends on RegField, resolved in decodeImmediates
)

type opcodeDesc struct {
	hasModRM    bool
	imm         operandKind
	name        string
	regInOpcode bool // low 3 bits of the opcode byte select a register (40-4F/50-5F/58-5F/90-97/B0-BF)
}

// primaryTable covers the one-byte opcode map. Entries absent from the
// map are undefined instructions in this emulator: real silicon
// defines more of them (segment push/pop, BCD adjust, I/O string ops,
// ESC/bound/...) but spec.md's target boot images never reach them, so
// decodeOpcode raises #UD for anything not listed here rather than
// guessing at semantics nothing exercises.
var primaryTable = buildPrimaryTable()

func buildPrimaryTable() map[byte]opcodeDesc {
	t := make(map[byte]opcodeDesc, 128)

	aluNames := []string{"add", "or", "adc", "sbb", "and", "sub", "xor", "cmp"}
	for i, name := range aluNames {
		base := byte(i * 8)
		t[base+0x00] = opcodeDesc{hasModRM: true, name: name + " Eb,Gb"}
		t[base+0x01] = opcodeDesc{hasModRM: true, name: name + " Ev,Gv"}
		t[base+0x02] = opcodeDesc{hasModRM: true, name: name + " Gb,Eb"}
		t[base+0x03] = opcodeDesc{hasModRM: true, name: name + " Gv,Ev"}
		t[base+0x04] = opcodeDesc{imm: immI8, name: name + " AL,Ib"}
		t[base+0x05] = opcodeDesc{imm: immZ, name: name + " eAX,Iz"}
	}

	for r := byte(0); r < 8; r++ {
		t[0x50+r] = opcodeDesc{regInOpcode: true, name: "push r"}
		t[0x58+r] = opcodeDesc{regInOpcode: true, name: "pop r"}
		t[0x91+r] = opcodeDesc{regInOpcode: true, name: "xchg eAX,r"}
		t[0xB0+r] = opcodeDesc{regInOpcode: true, imm: immI8, name: "mov r8,Ib"}
		t[0xB8+r] = opcodeDesc{regInOpcode: true, imm: immFull, name: "mov r,Iv"}
	}
	// INC/DEC r16/32 only exist outside long mode; the decoder only
	// reaches this table entry there since 0x40-0x4F are REX prefixes
	// in long mode.
	for r := byte(0); r < 8; r++ {
		t[0x40+r] = opcodeDesc{regInOpcode: true, name: "inc r"}
		t[0x48+r] = opcodeDesc{regInOpcode: true, name: "dec r"}
	}

	for i := byte(0); i < 16; i++ {
		t[0x70+i] = opcodeDesc{imm: relB, name: "jcc rel8"}
	}

	t[0x68] = opcodeDesc{imm: immZ, name: "push Iz"}
	t[0x69] = opcodeDesc{hasModRM: true, imm: immZ, name: "imul Gv,Ev,Iz"}
	t[0x6A] = opcodeDesc{imm: immI8Signed, name: "push Ib"}
	t[0x6B] = opcodeDesc{hasModRM: true, imm: immI8Signed, name: "imul Gv,Ev,Ib"}

	t[0x80] = opcodeDesc{hasModRM: true, imm: immGroup, name: "group1 Eb,Ib"}
	t[0x81] = opcodeDesc{hasModRM: true, imm: immGroup, name: "group1 Ev,Iz"}
	t[0x83] = opcodeDesc{hasModRM: true, imm: immGroup, name: "group1 Ev,Ib"}
	t[0x84] = opcodeDesc{hasModRM: true, name: "test Eb,Gb"}
	t[0x85] = opcodeDesc{hasModRM: true, name: "test Ev,Gv"}
	t[0x86] = opcodeDesc{hasModRM: true, name: "xchg Eb,Gb"}
	t[0x87] = opcodeDesc{hasModRM: true, name: "xchg Ev,Gv"}
	t[0x88] = opcodeDesc{hasModRM: true, name: "mov Eb,Gb"}
	t[0x89] = opcodeDesc{hasModRM: true, name: "mov Ev,Gv"}
	t[0x8A] = opcodeDesc{hasModRM: true, name: "mov Gb,Eb"}
	t[0x8B] = opcodeDesc{hasModRM: true, name: "mov Gv,Ev"}
	t[0x8D] = opcodeDesc{hasModRM: true, name: "lea Gv,M"}
	t[0x8F] = opcodeDesc{hasModRM: true, name: "pop Ev"}

	t[0x90] = opcodeDesc{name: "nop"}
	t[0x98] = opcodeDesc{name: "cbw/cwde/cdqe"}
	t[0x99] = opcodeDesc{name: "cwd/cdq/cqo"}
	t[0x9C] = opcodeDesc{name: "pushf"}
	t[0x9D] = opcodeDesc{name: "popf"}

	t[0xA0] = opcodeDesc{imm: moffsAddr, name: "mov AL,moffs"}
	t[0xA1] = opcodeDesc{imm: moffsAddr, name: "mov eAX,moffs"}
	t[0xA2] = opcodeDesc{imm: moffsAddr, name: "mov moffs,AL"}
	t[0xA3] = opcodeDesc{imm: moffsAddr, name: "mov moffs,eAX"}
	t[0xA4] = opcodeDesc{name: "movsb"}
	t[0xA5] = opcodeDesc{name: "movsw/d/q"}
	t[0xA6] = opcodeDesc{name: "cmpsb"}
	t[0xA7] = opcodeDesc{name: "cmpsw/d/q"}
	t[0xA8] = opcodeDesc{imm: immI8, name: "test AL,Ib"}
	t[0xA9] = opcodeDesc{imm: immZ, name: "test eAX,Iz"}
	t[0xAA] = opcodeDesc{name: "stosb"}
	t[0xAB] = opcodeDesc{name: "stosw/d/q"}
	t[0xAC] = opcodeDesc{name: "lodsb"}
	t[0xAD] = opcodeDesc{name: "lodsw/d/q"}
	t[0xAE] = opcodeDesc{name: "scasb"}
	t[0xAF] = opcodeDesc{name: "scasw/d/q"}

	t[0xC0] = opcodeDesc{hasModRM: true, imm: immI8, name: "group2 Eb,Ib"}
	t[0xC1] = opcodeDesc{hasModRM: true, imm: immI8, name: "group2 Ev,Ib"}
	t[0xC2] = opcodeDesc{imm: imm16Fixed, name: "ret Iw"}
	t[0xC3] = opcodeDesc{name: "ret"}
	t[0xC6] = opcodeDesc{hasModRM: true, imm: immI8, name: "mov Eb,Ib"}
	t[0xC7] = opcodeDesc{hasModRM: true, imm: immZ, name: "mov Ev,Iz"}
	t[0xC9] = opcodeDesc{name: "leave"}
	t[0xCC] = opcodeDesc{name: "int3"}
	t[0xCD] = opcodeDesc{imm: immI8, name: "int Ib"}
	t[0xCF] = opcodeDesc{name: "iret"}

	t[0xD0] = opcodeDesc{hasModRM: true, name: "group2 Eb,1"}
	t[0xD1] = opcodeDesc{hasModRM: true, name: "group2 Ev,1"}
	t[0xD2] = opcodeDesc{hasModRM: true, name: "group2 Eb,CL"}
	t[0xD3] = opcodeDesc{hasModRM: true, name: "group2 Ev,CL"}

	t[0xE8] = opcodeDesc{imm: relZ, name: "call relZ"}
	t[0xE9] = opcodeDesc{imm: relZ, name: "jmp relZ"}
	t[0xEB] = opcodeDesc{imm: relB, name: "jmp rel8"}

	t[0xF4] = opcodeDesc{name: "hlt"}
	t[0xF6] = opcodeDesc{hasModRM: true, imm: immGroup, name: "group3 Eb"}
	t[0xF7] = opcodeDesc{hasModRM: true, imm: immGroup, name: "group3 Ev"}
	t[0xFA] = opcodeDesc{name: "cli"}
	t[0xFB] = opcodeDesc{name: "sti"}
	t[0xFC] = opcodeDesc{name: "cld"}
	t[0xFD] = opcodeDesc{name: "std"}
	t[0xFE] = opcodeDesc{hasModRM: true, name: "group4 Eb"}
	t[0xFF] = opcodeDesc{hasModRM: true, name: "group5 Ev"}

	return t
}

var twoByteTable = buildTwoByteTable()

func buildTwoByteTable() map[byte]opcodeDesc {
	t := make(map[byte]opcodeDesc, 64)
	t[0x05] = opcodeDesc{name: "syscall"}
	t[0x0B] = opcodeDesc{name: "ud2"}
	t[0x1F] = opcodeDesc{hasModRM: true, name: "nop Ev"}
	for i := byte(0); i < 16; i++ {
		t[0x40+i] = opcodeDesc{hasModRM: true, name: "cmovcc Gv,Ev"}
		t[0x80+i] = opcodeDesc{imm: relZ, name: "jcc relZ"}
		t[0x90+i] = opcodeDesc{hasModRM: true, name: "setcc Eb"}
	}
	t[0xA2] = opcodeDesc{name: "cpuid"}
	t[0xA3] = opcodeDesc{hasModRM: true, name: "bt Ev,Gv"}
	t[0xAB] = opcodeDesc{hasModRM: true, name: "bts Ev,Gv"}
	t[0xAF] = opcodeDesc{hasModRM: true, name: "imul Gv,Ev"}
	t[0xB0] = opcodeDesc{hasModRM: true, name: "cmpxchg Eb,Gb"}
	t[0xB1] = opcodeDesc{hasModRM: true, name: "cmpxchg Ev,Gv"}
	t[0xB6] = opcodeDesc{hasModRM: true, name: "movzx Gv,Eb"}
	t[0xB7] = opcodeDesc{hasModRM: true, name: "movzx Gv,Ew"}
	t[0xBE] = opcodeDesc{hasModRM: true, name: "movsx Gv,Eb"}
	t[0xBF] = opcodeDesc{hasModRM: true, name: "movsx Gv,Ew"}
	return t
}

// threeByteTable reports the descriptor for an 0F 38/3A escape. None
// of this emulator's boot-image targets (real-mode BIOS bootstraps,
// protected-mode OS loaders, TinyCore's GRUB stage) reach SSSE3-era
// three-byte opcodes, so the table is intentionally empty and every
// lookup reports "unsupported", which decodeOpcode turns into #UD.
func threeByteTable(second, third byte) (opcodeDesc, bool) {
	return opcodeDesc{}, false
}

// groupALUNames names the eight group-1 ALU operations selected by
// the ModR/M reg field for opcodes 0x80/0x81/0x83.
var groupALUNames = [8]string{"add", "or", "adc", "sbb", "and", "sub", "xor", "cmp"}

// groupShiftNames names the eight group-2 shift/rotate operations
// selected by the ModR/M reg field for 0xC0/0xC1/0xD0-0xD3.
var groupShiftNames = [8]string{"rol", "ror", "rcl", "rcr", "shl", "shr", "sal", "sar"}

// groupF7Names names the group-3 unary operations selected by the
// ModR/M reg field for 0xF6/0xF7.
var groupF7Names = [8]string{"test", "test", "not", "neg", "mul", "imul", "div", "idiv"}

// groupFFNames names the group-5 operations selected by the ModR/M
// reg field for 0xFF (register/memory operand only; reg 6 PUSH, reg 3
// and 5 are far call/jmp which this emulator does not implement and
// raises #UD for since none of the boot targets chain through a
// memory-indirect far transfer).
var groupFFNames = [8]string{"inc", "dec", "call", "callf", "jmp", "jmpf", "push", ""}
