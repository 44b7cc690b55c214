/*
 * x86boot - INT 1Ah time-of-day services.
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

func toBCD(v int) byte {
	return byte((v/10)<<4 | (v % 10))
}

func (h *Handler) tod1A(m *executor.Machine, ah byte) *memory.FaultInfo {
	regs := m.Regs
	switch ah {
	case 0x00: // read system timer: CX:DX = BDA tick counter, AL = overflow flag
		ticks, fault := m.Mem.Read(bdaBase+bdaTickCounter, memory.W32)
		if fault != nil {
			return fault
		}
		overflow, fault := m.Mem.Read(bdaBase+bdaTickOverflow, memory.W8)
		if fault != nil {
			return fault
		}
		regs.SetReg16(cpuregs.RCX, uint16(ticks>>16))
		regs.SetReg16(cpuregs.RDX, uint16(ticks))
		regs.SetReg8Low(cpuregs.RAX, byte(overflow))
		if fault := m.Mem.Write(bdaBase+bdaTickOverflow, 0, memory.W8); fault != nil {
			return fault
		}

	case 0x02: // read RTC time: CH=hour, CL=minute, DH=second (BCD)
		now := h.now()
		regs.SetReg8High(cpuregs.RCX, toBCD(now.Hour()))
		regs.SetReg8Low(cpuregs.RCX, toBCD(now.Minute()))
		regs.SetReg8High(cpuregs.RDX, toBCD(now.Second()))
		setCF(m, false)

	case 0x04: // read RTC date: CH=century, CL=year, DH=month, DL=day (BCD)
		now := h.now()
		year := now.Year()
		regs.SetReg8High(cpuregs.RCX, toBCD(year/100))
		regs.SetReg8Low(cpuregs.RCX, toBCD(year%100))
		regs.SetReg8High(cpuregs.RDX, toBCD(int(now.Month())))
		regs.SetReg8Low(cpuregs.RDX, toBCD(now.Day()))
		setCF(m, false)
	}
	return nil
}
