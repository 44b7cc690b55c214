package boot

import (
	"os"
	"path/filepath"
	"testing"
)

func writeImage(t *testing.T, size int, patch func([]byte)) string {
	t.Helper()
	buf := make([]byte, size)
	if patch != nil {
		patch(buf)
	}
	path := filepath.Join(t.TempDir(), "disk.img")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return path
}

func TestVerifyBootSignature(t *testing.T) {
	path := writeImage(t, SectorSize, func(b []byte) {
		b[510] = sig0
		b[511] = sig1
	})

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.VerifyBootSignature(); err != nil {
		t.Errorf("VerifyBootSignature: %v", err)
	}
}

func TestVerifyBootSignatureBadSig(t *testing.T) {
	path := writeImage(t, SectorSize, nil)

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.VerifyBootSignature(); err != ErrBadSignature {
		t.Errorf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerifyBootSignatureBadSize(t *testing.T) {
	path := writeImage(t, SectorSize+1, nil)

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.VerifyBootSignature(); err != ErrBadSize {
		t.Errorf("expected ErrBadSize, got %v", err)
	}
}

func TestReadByteAt(t *testing.T) {
	path := writeImage(t, SectorSize, func(b []byte) {
		b[0] = 0xEB
		b[1] = 0x3C
	})

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if b, ok := s.ReadByteAt(0); !ok || b != 0xEB {
		t.Errorf("ReadByteAt(0) = %#x, %v", b, ok)
	}
	if _, ok := s.ReadByteAt(SectorSize); ok {
		t.Errorf("ReadByteAt past end should fail")
	}
}

func TestReadSectorShortPad(t *testing.T) {
	path := writeImage(t, 200, nil)

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	buf, err := s.ReadSector(0, SectorSize)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if len(buf) != SectorSize {
		t.Fatalf("expected %d bytes got %d", SectorSize, len(buf))
	}
	for i := 200; i < SectorSize; i++ {
		if buf[i] != 0 {
			t.Fatalf("expected zero padding at %d, got %#x", i, buf[i])
		}
	}
}

func TestReadSectorLBA(t *testing.T) {
	path := writeImage(t, SectorSize*3, func(b []byte) {
		b[SectorSize] = 0x42
	})

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	buf, err := s.ReadSector(1, SectorSize)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if buf[0] != 0x42 {
		t.Errorf("expected sector 1 byte 0 = 0x42, got %#x", buf[0])
	}
}
