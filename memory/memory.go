/*
 * x86boot - Physical memory model.
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

// Package memory implements the emulator's sparse, paged physical RAM,
// the MMIO observer chain, and the code-fetch cursor used by the
// decoder. Address translation (protected/long mode paging) is
// supplied by the caller as a Translator callback via SetTranslator;
// this package never looks at CR0/CR3 itself, matching the teacher's
// split between "memory" (physical storage) and "cpu" (address
// translation owner). No package in this module installs a
// Translator, so linear addresses are used as physical ones.
package memory

import "fmt"

// Width is the access width of a memory operation, in bits.
type Width uint8

const (
	W8  Width = 8
	W16 Width = 16
	W32 Width = 32
	W64 Width = 64
)

const (
	PageSize  = 4096
	pageShift = 12
	pageMask  = PageSize - 1

	// DefaultMaxAddr is the default physical address ceiling (16 MiB),
	// matching spec.md's default configuration.
	DefaultMaxAddr = 16 * 1024 * 1024
)

// FaultInfo describes a page-fault (or similar) condition raised while
// translating a linear address.
type FaultInfo struct {
	Vector    uint8
	ErrorCode uint32
	FaultAddr uint64
}

func (f *FaultInfo) Error() string {
	return fmt.Sprintf("memory fault vector=%#x err=%#x addr=%#x", f.Vector, f.ErrorCode, f.FaultAddr)
}

// Translator maps a linear address to a physical address, or returns a
// FaultInfo describing why it could not. write/fetch distinguish the
// access kind for the U/S, W/R, I/D bits of a page-fault error code.
type Translator func(linear uint64, write bool, fetch bool) (phys uint64, fault *FaultInfo)

// Observer intercepts accesses to a physical address range (VGA text
// buffer, BDA, ...). Observers are consulted in registration order; the
// first one whose range covers the address may produce/consume the
// value and short-circuit the backing store, or report "not handled"
// to let the access fall through.
type Observer interface {
	Covers(addr uint64) bool
	Read(addr uint64, width Width) (value uint64, handled bool)
	Write(addr uint64, value uint64, width Width) (handled bool)
}

// Memory is the emulator's physical address space: a sparse page table
// of 4 KiB pages allocated lazily on first write, plus an MMIO observer
// chain and a code-fetch cursor.
type Memory struct {
	pages     map[uint64]*[PageSize]byte
	maxAddr   uint64
	observers []Observer
	translate Translator

	fetchCursor uint64
	fetchBaseIP uint64
}

// New creates physical memory sized to maxAddr bytes (rounded up
// internally to whole pages on first touch).
func New(maxAddr uint64) *Memory {
	if maxAddr == 0 {
		maxAddr = DefaultMaxAddr
	}
	return &Memory{
		pages:   make(map[uint64]*[PageSize]byte),
		maxAddr: maxAddr,
	}
}

// MaxAddr reports the configured physical address ceiling.
func (m *Memory) MaxAddr() uint64 { return m.maxAddr }

// SetTranslator installs the linear-to-physical translation callback.
// A nil translator (the default) means linear == physical.
func (m *Memory) SetTranslator(t Translator) { m.translate = t }

// RegisterObserver appends an observer. Observers are consulted in
// registration order, so more specific ranges should register before
// broader fallback ranges.
func (m *Memory) RegisterObserver(o Observer) {
	m.observers = append(m.observers, o)
}

// Allocate pre-touches the pages covering [addr, addr+size) so that
// later reads see zero-filled memory rather than a sparse gap; callers
// are never required to do this, it only avoids a burst of page
// allocations on first access to a large region (e.g. a disk load
// target).
func (m *Memory) Allocate(addr, size uint64) {
	if size == 0 {
		return
	}
	start := addr &^ pageMask
	end := (addr + size - 1) &^ pageMask
	for p := start; p <= end; p += PageSize {
		m.page(p, true)
	}
}

func (m *Memory) page(base uint64, create bool) *[PageSize]byte {
	base &^= pageMask
	p, ok := m.pages[base]
	if !ok {
		if !create {
			return nil
		}
		p = &[PageSize]byte{}
		m.pages[base] = p
	}
	return p
}

func (m *Memory) inRange(addr uint64) bool {
	return addr < m.maxAddr
}

// physicalReadByte reads one byte of backing store, consulting
// observers first.
func (m *Memory) physicalReadByte(addr uint64) byte {
	for _, obs := range m.observers {
		if obs.Covers(addr) {
			if v, handled := obs.Read(addr, W8); handled {
				return byte(v)
			}
			break
		}
	}
	if !m.inRange(addr) {
		return 0
	}
	page := m.page(addr, false)
	if page == nil {
		return 0
	}
	return page[addr&pageMask]
}

// physicalWriteByte writes one byte of backing store, consulting
// observers first; an observer that handles the write does not also
// reach the backing store (it is responsible for any side mirroring
// itself, as VGA MMIO does).
func (m *Memory) physicalWriteByte(addr uint64, v byte) {
	for _, obs := range m.observers {
		if obs.Covers(addr) {
			if handled := obs.Write(addr, uint64(v), W8); handled {
				return
			}
			break
		}
	}
	if !m.inRange(addr) {
		return
	}
	page := m.page(addr, true)
	page[addr&pageMask] = v
}

// PhysicalRead bypasses address translation (but not observers).
func (m *Memory) PhysicalRead(addr uint64, width Width) uint64 {
	var v uint64
	n := int(width) / 8
	for i := 0; i < n; i++ {
		v |= uint64(m.physicalReadByte(addr+uint64(i))) << (8 * i)
	}
	return v
}

// PhysicalWrite bypasses address translation (but not observers).
func (m *Memory) PhysicalWrite(addr uint64, value uint64, width Width) {
	n := int(width) / 8
	for i := 0; i < n; i++ {
		m.physicalWriteByte(addr+uint64(i), byte(value>>(8*i)))
	}
}

func (m *Memory) translateByte(linear uint64, write, fetch bool) (uint64, *FaultInfo) {
	if m.translate == nil {
		return linear, nil
	}
	return m.translate(linear, write, fetch)
}

// Read performs a little-endian read of width bits at linear address
// addr, translating through the installed Translator (paging) when
// set. Unaligned accesses and accesses that straddle a page boundary
// are split byte by byte so each can be independently translated.
func (m *Memory) Read(addr uint64, width Width) (uint64, *FaultInfo) {
	n := int(width) / 8
	var v uint64
	for i := 0; i < n; i++ {
		phys, fault := m.translateByte(addr+uint64(i), false, false)
		if fault != nil {
			return 0, fault
		}
		v |= uint64(m.physicalReadByte(phys)) << (8 * i)
	}
	return v & widthMask(width), nil
}

// Write performs a little-endian write of width bits at linear address
// addr, translating through the installed Translator when set.
func (m *Memory) Write(addr uint64, value uint64, width Width) *FaultInfo {
	n := int(width) / 8
	for i := 0; i < n; i++ {
		phys, fault := m.translateByte(addr+uint64(i), true, false)
		if fault != nil {
			return fault
		}
		m.physicalWriteByte(phys, byte(value>>(8*i)))
	}
	return nil
}

func widthMask(w Width) uint64 {
	if w == W64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(w)) - 1
}

// BeginFetch resets the code-fetch cursor to linearIP and remembers it
// as the initiating IP: any fault raised while fetching subsequent
// bytes of this instruction is tagged with linearIP, not the partial
// fetch position, so interrupt delivery preserves CS:IP of the
// faulting instruction.
func (m *Memory) BeginFetch(linearIP uint64) {
	m.fetchCursor = linearIP
	m.fetchBaseIP = linearIP
}

// FetchInitiatingIP returns the linear IP the current fetch began at.
func (m *Memory) FetchInitiatingIP() uint64 { return m.fetchBaseIP }

// FetchByte returns the next byte of the instruction under decode and
// advances the fetch cursor.
func (m *Memory) FetchByte() (byte, *FaultInfo) {
	phys, fault := m.translateByte(m.fetchCursor, false, true)
	if fault != nil {
		fault.FaultAddr = m.fetchBaseIP
		return 0, fault
	}
	b := m.physicalReadByte(phys)
	m.fetchCursor++
	return b, nil
}

// FetchCursor reports the current (post-consumption) fetch position.
func (m *Memory) FetchCursor() uint64 { return m.fetchCursor }
