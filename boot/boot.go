/*
 * x86boot - Bootable disk image stream.
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

// Package boot provides random-access reading of a bootable disk image
// (MBR floppy/HDD image, or a bootable stream already extracted from an
// El Torito ISO9660 image by an external parser). It is the only piece
// of the emulator allowed to touch the host filesystem.
package boot

import (
	"errors"
	"io"
	"os"
)

const (
	SectorSize = 512

	sigOffset = 510
	sig0      = 0x55
	sig1      = 0xAA
)

var (
	ErrNotAttached  = errors.New("boot: no image attached")
	ErrBadSignature = errors.New("boot: missing 0x55AA boot signature")
	ErrBadSize      = errors.New("boot: image size is not a multiple of 512 bytes")
	ErrShortSector  = errors.New("boot: short read of sector")
)

// Stream is a random-access byte source for a bootable disk image.
type Stream struct {
	file *os.File
	size int64
}

// Open attaches a disk image file for reading.
func Open(path string) (*Stream, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	return &Stream{file: file, size: info.Size()}, nil
}

// Close releases the underlying file. The backing image must stay open
// for the lifetime of the run; callers close it only on shutdown.
func (s *Stream) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}

// Size returns the total size of the image in bytes.
func (s *Stream) Size() int64 {
	if s == nil {
		return 0
	}
	return s.size
}

// ReadByteAt returns the byte at the given absolute offset, or false if
// the offset is past the end of the image.
func (s *Stream) ReadByteAt(offset int64) (byte, bool) {
	if s == nil || s.file == nil || offset < 0 || offset >= s.size {
		return 0, false
	}

	var buf [1]byte
	if _, err := s.file.ReadAt(buf[:], offset); err != nil {
		return 0, false
	}
	return buf[0], true
}

// ReadSector reads one sector (LBA addressed) of sectorSize bytes.
func (s *Stream) ReadSector(lba uint64, sectorSize int) ([]byte, error) {
	if s == nil || s.file == nil {
		return nil, ErrNotAttached
	}

	buf := make([]byte, sectorSize)
	off := int64(lba) * int64(sectorSize)

	n, err := s.file.ReadAt(buf, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if n < sectorSize {
		// Images are occasionally short at the final sector; zero-pad
		// rather than fail, matching how a real BIOS reads a track
		// that runs off the end of a truncated floppy image.
		for i := n; i < sectorSize; i++ {
			buf[i] = 0
		}
	}
	return buf, nil
}

// VerifyBootSignature checks that bytes 510/511 are 0x55 0xAA and that
// the medium is exactly 512 bytes or a multiple of 512 bytes, per the
// MBR boot-sector convention.
func (s *Stream) VerifyBootSignature() error {
	if s == nil || s.file == nil {
		return ErrNotAttached
	}
	if s.size%SectorSize != 0 {
		return ErrBadSize
	}

	b0, ok0 := s.ReadByteAt(sigOffset)
	b1, ok1 := s.ReadByteAt(sigOffset + 1)
	if !ok0 || !ok1 || b0 != sig0 || b1 != sig1 {
		return ErrBadSignature
	}
	return nil
}
