package cpuregs

import "testing"

func TestReg32WriteZeroExtends(t *testing.T) {
	s := NewState()
	s.SetReg64(RAX, 0xFFFFFFFFFFFFFFFF)
	s.SetReg32(RAX, 0x12345678)

	if got := s.Reg64(RAX); got != 0x12345678 {
		t.Errorf("32-bit write should zero-extend: got %#x", got)
	}
}

func TestReg16WritePreservesUpper(t *testing.T) {
	s := NewState()
	s.SetReg64(RAX, 0x1122334455667788)
	s.SetReg16(RAX, 0xBEEF)

	want := uint64(0x1122334455660000) | 0xBEEF
	if got := s.Reg64(RAX); got != want {
		t.Errorf("16-bit write should preserve bits above 15: got %#x want %#x", got, want)
	}
}

func TestReg8LowHighIndependentAndPreserving(t *testing.T) {
	s := NewState()
	s.SetReg64(RAX, 0)
	s.SetReg8Low(RAX, 0x11)
	s.SetReg8High(RAX, 0x22)

	if got := s.Reg16(RAX); got != 0x2211 {
		t.Errorf("AL/AH composition wrong: got %#x", got)
	}
	s.SetReg8Low(RAX, 0x33)
	if got := s.Reg8High(RAX); got != 0x22 {
		t.Errorf("writing AL must not disturb AH: got %#x", got)
	}
}

func TestModeDerivation(t *testing.T) {
	s := NewState()
	if m := s.Mode(); m != RealMode {
		t.Errorf("fresh state should be real mode, got %v", m)
	}

	s.CR0 |= CR0PE
	if m := s.Mode(); m != ProtectedMode {
		t.Errorf("CR0.PE should select protected mode, got %v", m)
	}

	s.EFER |= EFERLMA
	if m := s.Mode(); m != LongMode {
		t.Errorf("EFER.LMA should select long mode, got %v", m)
	}
}

func TestFlagsIndependentBits(t *testing.T) {
	s := NewState()
	s.SetCF(true)
	s.SetZF(true)
	if !s.CF() || !s.ZF() {
		t.Fatal("expected CF and ZF set")
	}
	s.SetCF(false)
	if s.CF() {
		t.Error("CF should be clear")
	}
	if !s.ZF() {
		t.Error("clearing CF should not clear ZF")
	}
}

func TestIOPLRoundTrip(t *testing.T) {
	s := NewState()
	s.SetIOPL(3)
	if got := s.IOPL(); got != 3 {
		t.Errorf("IOPL round trip: got %d want 3", got)
	}
}

func TestParityEven(t *testing.T) {
	if !ParityEven(0x00) {
		t.Error("0x00 has even parity (0 bits set)")
	}
	if ParityEven(0x01) {
		t.Error("0x01 has odd parity")
	}
	if !ParityEven(0x03) {
		t.Error("0x03 has even parity (2 bits set)")
	}
}
