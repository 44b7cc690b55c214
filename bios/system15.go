/*
 * x86boot - INT 15h system services.
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
	"github.com/rcornwell/x86boot/cpuregs"
	"github.com/rcornwell/x86boot/executor"
	"github.com/rcornwell/x86boot/memory"
)

const e820Signature = 0x534D4150 // "SMAP"

func (h *Handler) system15(m *executor.Machine, ah byte) *memory.FaultInfo {
	regs := m.Regs
	switch ah {
	case 0x24, 0x91: // enable/query A20 line: always reported enabled
		setCF(m, false)
		regs.SetReg8High(cpuregs.RAX, 0)

	case 0xE8:
		al := regs.Reg8Low(cpuregs.RAX)
		if al != 0x20 { // only the E820 memory-map subfunction is modeled
			setCF(m, true)
			return nil
		}
		return h.e820(m)

	default:
		setCF(m, true)
	}
	return nil
}

// e820 produces a single memory-map entry covering usable RAM from 0
// up to MaxRAM, the only shape the target bootloaders (GRUB stage2,
// MikeOS, TinyCore's kernel loader) actually need to proceed past
// their memory-detection step.
func (h *Handler) e820(m *executor.Machine) *memory.FaultInfo {
	regs := m.Regs
	esBase := regs.Seg(cpuregs.ES).Desc.Base
	di := regs.Reg16(cpuregs.RDI)
	dest := esBase + uint64(di)

	fields := []struct {
		off   uint64
		width memory.Width
		val   uint64
	}{
		{0, memory.W64, 0},          // base address
		{8, memory.W64, h.MaxRAM},   // length
		{16, memory.W32, 1},         // type 1: usable RAM
	}
	for _, f := range fields {
		if fault := m.Mem.Write(dest+f.off, f.val, f.width); fault != nil {
			return fault
		}
	}

	regs.SetReg32(cpuregs.RAX, uint32(e820Signature))
	regs.SetReg32(cpuregs.RCX, 20)
	regs.SetReg32(cpuregs.RBX, 0) // continuation value: no further entries
	setCF(m, false)
	return nil
}
