package decoder

import (
	"testing"

	"github.com/rcornwell/x86boot/cpuregs"
	"github.com/rcornwell/x86boot/memory"
)

func setup(code []byte) (*memory.Memory, *cpuregs.State) {
	mem := memory.New(memory.DefaultMaxAddr)
	for i, b := range code {
		mem.Write(uint64(0x7C00+i), uint64(b), memory.W8)
	}
	regs := cpuregs.NewState()
	regs.RIP = 0x7C00
	return mem, regs
}

func decodeAt(t *testing.T, mem *memory.Memory, regs *cpuregs.State) *Instruction {
	t.Helper()
	mem.BeginFetch(regs.RIP)
	inst, err := Decode(mem, regs)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return inst
}

func TestDecodeMovAXImm16RealMode(t *testing.T) {
	// B8 34 12 -> MOV AX, 0x1234
	mem, regs := setup([]byte{0xB8, 0x34, 0x12})
	inst := decodeAt(t, mem, regs)

	if inst.Length != 3 {
		t.Errorf("length = %d, want 3", inst.Length)
	}
	if inst.OperandSize != 16 {
		t.Errorf("operand size = %d, want 16", inst.OperandSize)
	}
	if !inst.HasImm || inst.Imm != 0x1234 {
		t.Errorf("imm = %#x, want 0x1234", inst.Imm)
	}
}

func TestDecodeOperandSizeOverrideIn16BitMode(t *testing.T) {
	// 66 B8 78 56 34 12 -> MOV EAX, 0x12345678 (operand size override to 32)
	mem, regs := setup([]byte{0x66, 0xB8, 0x78, 0x56, 0x34, 0x12})
	inst := decodeAt(t, mem, regs)

	if inst.OperandSize != 32 {
		t.Fatalf("operand size = %d, want 32", inst.OperandSize)
	}
	if inst.Imm != 0x12345678 {
		t.Errorf("imm = %#x, want 0x12345678", inst.Imm)
	}
	if inst.Length != 6 {
		t.Errorf("length = %d, want 6", inst.Length)
	}
}

func TestDecodeModRMDisp8RealMode(t *testing.T) {
	// 8A 46 02 -> MOV AL, [BP+2]
	mem, regs := setup([]byte{0x8A, 0x46, 0x02})
	inst := decodeAt(t, mem, regs)

	if !inst.HasModRM {
		t.Fatal("expected ModR/M")
	}
	if inst.Mod != 1 || inst.RM != 6 {
		t.Fatalf("mod=%d rm=%d, want mod=1 rm=6", inst.Mod, inst.RM)
	}
	if !inst.HasBase || inst.Base != cpuregs.RBP {
		t.Errorf("expected base=BP, got has=%v base=%v", inst.HasBase, inst.Base)
	}
	if !inst.HasDisp || inst.Disp != 2 {
		t.Errorf("disp = %d, want 2", inst.Disp)
	}
	if inst.Length != 3 {
		t.Errorf("length = %d, want 3", inst.Length)
	}
}

func TestDecodeGroup1Opcode83SignExtends(t *testing.T) {
	// 83 C0 FF -> ADD EAX, -1 (Ib sign-extended), in 32-bit default segment
	mem, regs := setup([]byte{0x83, 0xC0, 0xFF})
	regs.CR0 |= cpuregs.CR0PE
	seg := regs.Seg(cpuregs.CS)
	seg.Desc.DefaultSize = 32
	regs.SetSeg(cpuregs.CS, seg)

	inst := decodeAt(t, mem, regs)
	if !inst.HasImm {
		t.Fatal("expected immediate")
	}
	if inst.ImmSigned != -1 {
		t.Errorf("imm signed = %d, want -1", inst.ImmSigned)
	}
	if GroupALUName(inst.RegField) != "add" {
		t.Errorf("group name = %q, want add", GroupALUName(inst.RegField))
	}
}

func TestDecodeRexW64BitOperandSize(t *testing.T) {
	// REX.W + B8 -> MOV RAX, imm64, in long mode with 64-bit default CS
	mem, regs := setup([]byte{0x48, 0xB8, 1, 0, 0, 0, 0, 0, 0, 0})
	regs.CR0 |= cpuregs.CR0PE
	regs.EFER |= cpuregs.EFERLMA
	seg := regs.Seg(cpuregs.CS)
	seg.Desc.DefaultSize = 64
	regs.SetSeg(cpuregs.CS, seg)

	inst := decodeAt(t, mem, regs)
	if inst.OperandSize != 64 {
		t.Fatalf("operand size = %d, want 64", inst.OperandSize)
	}
	if inst.ImmSize != 64 || inst.Imm != 1 {
		t.Errorf("imm = %#x size=%d, want 1/64", inst.Imm, inst.ImmSize)
	}
	if inst.Length != 10 {
		t.Errorf("length = %d, want 10", inst.Length)
	}
}

func TestDecodeSIBWithIndexAndBase(t *testing.T) {
	// long mode, 32-bit address size (0x67): 8B 04 99 -> MOV EAX, [RCX+RBX*4]... actually
	// 0x67 + 8B /r with SIB: mod=00 rm=100(SIB follows), SIB scale=10 index=011(RBX) base=001(RCX)
	mem, regs := setup([]byte{0x67, 0x8B, 0x04, 0x99})
	regs.CR0 |= cpuregs.CR0PE
	regs.EFER |= cpuregs.EFERLMA
	seg := regs.Seg(cpuregs.CS)
	seg.Desc.DefaultSize = 64
	regs.SetSeg(cpuregs.CS, seg)

	inst := decodeAt(t, mem, regs)
	if inst.AddressSize != 32 {
		t.Fatalf("address size = %d, want 32 (0x67 halves 64->32)", inst.AddressSize)
	}
	if !inst.HasSIB {
		t.Fatal("expected SIB")
	}
	if inst.Scale != 4 {
		t.Errorf("scale = %d, want 4", inst.Scale)
	}
	if !inst.HasIndex || inst.Index != cpuregs.RBX {
		t.Errorf("index = %v (has=%v), want RBX", inst.Index, inst.HasIndex)
	}
	if !inst.HasBase || inst.Base != cpuregs.RCX {
		t.Errorf("base = %v (has=%v), want RCX", inst.Base, inst.HasBase)
	}
}

func TestDecodeRIPRelative(t *testing.T) {
	// long mode, 64-bit address size: 8B 05 10 00 00 00 -> MOV EAX, [RIP+0x10]
	mem, regs := setup([]byte{0x8B, 0x05, 0x10, 0x00, 0x00, 0x00})
	regs.CR0 |= cpuregs.CR0PE
	regs.EFER |= cpuregs.EFERLMA
	seg := regs.Seg(cpuregs.CS)
	seg.Desc.DefaultSize = 64
	regs.SetSeg(cpuregs.CS, seg)

	inst := decodeAt(t, mem, regs)
	if !inst.RIPRelative {
		t.Fatal("expected RIP-relative addressing")
	}
	if inst.Disp != 0x10 {
		t.Errorf("disp = %#x, want 0x10", inst.Disp)
	}
	next := regs.RIP + uint64(inst.Length)
	if got := EffectiveAddress(inst, regs, next); got != next+0x10 {
		t.Errorf("effective address = %#x, want %#x", got, next+0x10)
	}
}

func TestDecodeJccRel8(t *testing.T) {
	// 74 FE -> JZ rel8 -2
	mem, regs := setup([]byte{0x74, 0xFE})
	inst := decodeAt(t, mem, regs)
	if inst.ImmSigned != -2 {
		t.Errorf("rel8 = %d, want -2", inst.ImmSigned)
	}
}

func TestDecodeUnsupportedOpcodeIsUD(t *testing.T) {
	mem, regs := setup([]byte{0x0F, 0x3A, 0x0F}) // palignr, not in the three-byte table
	mem.BeginFetch(regs.RIP)
	_, err := Decode(mem, regs)
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, ok := err.(*ErrUD); !ok {
		t.Errorf("expected *ErrUD, got %T: %v", err, err)
	}
}

func TestDecodePHPBIOSOpcode(t *testing.T) {
	mem, regs := setup([]byte{0x0F, 0xFF, 0x13}) // synthetic INT 13h call
	inst := decodeAt(t, mem, regs)
	if !inst.PHPBIOS {
		t.Fatal("expected PHPBIOS flag")
	}
	if inst.Opcode[2] != 0x13 {
		t.Errorf("vector = %#x, want 0x13", inst.Opcode[2])
	}
	if inst.Length != 3 {
		t.Errorf("length = %d, want 3", inst.Length)
	}
}

func TestDecodeTruncatedInstructionFaults(t *testing.T) {
	mem := memory.New(memory.DefaultMaxAddr)
	// leave memory empty past one byte worth of a two-byte opcode: 0F with
	// nothing following still decodes (reads zero as second byte, which
	// happens to be a valid two-byte opcode 0x00... instead force a real
	// fault via a translator that rejects everything past the first byte).
	mem.Write(0x7C00, 0x0F, memory.W8)
	calls := 0
	mem.SetTranslator(func(linear uint64, write, fetch bool) (uint64, *memory.FaultInfo) {
		calls++
		if calls > 1 {
			return 0, &memory.FaultInfo{Vector: 14, FaultAddr: 0x7C00}
		}
		return linear, nil
	})
	regs := cpuregs.NewState()
	regs.RIP = 0x7C00
	mem.BeginFetch(regs.RIP)
	_, err := Decode(mem, regs)
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, ok := err.(*memory.FaultInfo); !ok {
		t.Errorf("expected *memory.FaultInfo, got %T: %v", err, err)
	}
}
