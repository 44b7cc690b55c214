/*
 * x86boot - INT 10h video services.
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

func (h *Handler) video10(m *executor.Machine, ah byte) *memory.FaultInfo {
	if h.Video == nil {
		return nil
	}
	regs := m.Regs
	switch ah {
	case 0x00: // set video mode: this facade only ever presents 80x25 text
		h.Video.Clear()

	case 0x02: // set cursor position: DH=row, DL=col
		dx := regs.Reg16(cpuregs.RDX)
		h.Video.SetCursor(int(byte(dx>>8)), int(byte(dx)))

	case 0x03: // get cursor position: returns DH=row, DL=col, CX=shape
		row, col := h.Video.Cursor()
		regs.SetReg16(cpuregs.RDX, uint16(row)<<8|uint16(col))
		regs.SetReg16(cpuregs.RCX, 0x0607) // typical underline cursor shape

	case 0x06: // scroll window up
		al := regs.Reg8Low(cpuregs.RAX)
		cx := regs.Reg16(cpuregs.RCX)
		dx := regs.Reg16(cpuregs.RDX)
		bh := regs.Reg8High(cpuregs.RBX)
		h.Video.ScrollUp(int(al), int(byte(cx>>8)), int(byte(dx>>8)), bh)

	case 0x07: // scroll window down
		al := regs.Reg8Low(cpuregs.RAX)
		cx := regs.Reg16(cpuregs.RCX)
		dx := regs.Reg16(cpuregs.RDX)
		bh := regs.Reg8High(cpuregs.RBX)
		h.Video.ScrollDown(int(al), int(byte(cx>>8)), int(byte(dx>>8)), bh)

	case 0x0E: // teletype output: AL=char, BL=attribute (page ignored)
		al := regs.Reg8Low(cpuregs.RAX)
		bl := regs.Reg8Low(cpuregs.RBX)
		h.Video.Teletype(al, bl)
	}
	return nil
}
