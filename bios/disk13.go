/*
 * x86boot - INT 13h disk services.
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

package bios

import (
	"github.com/rcornwell/x86boot/boot"
	"github.com/rcornwell/x86boot/cpuregs"
	"github.com/rcornwell/x86boot/executor"
	"github.com/rcornwell/x86boot/memory"
)

// Disk geometry this facade reports to CHS-style callers. Boot
// sectors written against a fixed 1.44MB floppy geometry are the only
// CHS consumers among the target images; everything El Torito/GRUB
// reads goes through the LBA packet form (AH=42) instead.
const (
	headsPerCylinder  = 2
	sectorsPerTrack   = 18
	statusBadSector   = 0x04
	statusInvalidFunc = 0x01
)

func (h *Handler) disk13(m *executor.Machine, ah byte) *memory.FaultInfo {
	regs := m.Regs
	switch ah {
	case 0x00: // reset disk system
		setCF(m, false)
		regs.SetReg8High(cpuregs.RAX, 0)

	case 0x02: // read sectors, CHS addressing
		return h.readCHS(m)

	case 0x42: // extended read, LBA packet
		return h.readLBAPacket(m)

	default:
		setCF(m, true)
		regs.SetReg8High(cpuregs.RAX, statusInvalidFunc)
	}
	return nil
}

func (h *Handler) readCHS(m *executor.Machine) *memory.FaultInfo {
	regs := m.Regs
	al := regs.Reg8Low(cpuregs.RAX)
	cx := regs.Reg16(cpuregs.RCX)
	dx := regs.Reg16(cpuregs.RDX)
	count := int(al)
	cylinder := uint64(cx>>8) | uint64(cx&0xC0)<<2
	sector := uint64(cx & 0x3F)
	head := uint64(byte(dx >> 8))

	if h.Disk == nil || count == 0 || sector == 0 {
		fail(m, statusBadSector)
		return nil
	}

	lba := (cylinder*headsPerCylinder+head)*sectorsPerTrack + (sector - 1)
	esBase := regs.Seg(cpuregs.ES).Desc.Base
	bx := regs.Reg16(cpuregs.RBX)
	dest := esBase + uint64(bx)

	for i := 0; i < count; i++ {
		data, err := h.Disk.ReadSector(lba+uint64(i), boot.SectorSize)
		if err != nil {
			fail(m, statusBadSector)
			regs.SetReg8Low(cpuregs.RAX, byte(i))
			return nil
		}
		for j, b := range data {
			if fault := m.Mem.Write(dest+uint64(i*boot.SectorSize+j), uint64(b), memory.W8); fault != nil {
				return fault
			}
		}
	}

	setCF(m, false)
	regs.SetReg8High(cpuregs.RAX, 0)
	regs.SetReg8Low(cpuregs.RAX, byte(count))
	return nil
}

func (h *Handler) readLBAPacket(m *executor.Machine) *memory.FaultInfo {
	regs := m.Regs
	dsBase := regs.Seg(cpuregs.DS).Desc.Base
	si := regs.Reg16(cpuregs.RSI)
	packet := dsBase + uint64(si)

	size, fault := m.Mem.Read(packet, memory.W8)
	if fault != nil {
		return fault
	}
	if size < 0x10 {
		fail(m, statusInvalidFunc)
		return nil
	}
	count, fault := m.Mem.Read(packet+2, memory.W16)
	if fault != nil {
		return fault
	}
	bufOff, fault := m.Mem.Read(packet+4, memory.W16)
	if fault != nil {
		return fault
	}
	bufSeg, fault := m.Mem.Read(packet+6, memory.W16)
	if fault != nil {
		return fault
	}
	lba, fault := m.Mem.Read(packet+8, memory.W64)
	if fault != nil {
		return fault
	}

	if h.Disk == nil {
		fail(m, statusBadSector)
		return nil
	}

	dest := bufSeg<<4 + bufOff
	for i := uint64(0); i < count; i++ {
		data, err := h.Disk.ReadSector(lba+i, boot.SectorSize)
		if err != nil {
			fail(m, statusBadSector)
			return nil
		}
		for j, b := range data {
			if fault := m.Mem.Write(dest+i*boot.SectorSize+uint64(j), uint64(b), memory.W8); fault != nil {
				return fault
			}
		}
	}

	setCF(m, false)
	regs.SetReg8High(cpuregs.RAX, 0)
	return nil
}

func fail(m *executor.Machine, status byte) {
	setCF(m, true)
	m.Regs.SetReg8High(cpuregs.RAX, status)
}
