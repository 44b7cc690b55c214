/*
 * x86boot - INT 21h DOS services.
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

func (h *Handler) dos21(m *executor.Machine, ah byte) *memory.FaultInfo {
	regs := m.Regs
	switch ah {
	case 0x02: // character output: DL=char
		dl := regs.Reg8Low(cpuregs.RDX)
		if h.Video != nil {
			h.Video.Teletype(dl, 0x07)
		}

	case 0x09: // string output: DS:DX -> '$'-terminated string
		dsBase := regs.Seg(cpuregs.DS).Desc.Base
		dx := regs.Reg16(cpuregs.RDX)
		addr := dsBase + uint64(dx)
		for {
			v, fault := m.Mem.Read(addr, memory.W8)
			if fault != nil {
				return fault
			}
			ch := byte(v)
			if ch == '$' {
				break
			}
			if h.Video != nil {
				h.Video.Teletype(ch, 0x07)
			}
			addr++
		}

	case 0x0A: // buffered keyboard input: DS:DX -> capacity byte, then chars
		return h.bufferedInput(m)

	case 0x4C: // terminate with return code in AL
		m.Halted = true
		m.Exited = true
	}
	return nil
}

func (h *Handler) bufferedInput(m *executor.Machine) *memory.FaultInfo {
	if h.Keys == nil {
		return nil
	}
	regs := m.Regs
	dsBase := regs.Seg(cpuregs.DS).Desc.Base
	dx := regs.Reg16(cpuregs.RDX)
	addr := dsBase + uint64(dx)

	capV, fault := m.Mem.Read(addr, memory.W8)
	if fault != nil {
		return fault
	}
	capacity := int(capV)
	count := 0
	for count < capacity {
		key, ok := h.Keys.TryPop()
		if !ok {
			break
		}
		if fault := m.Mem.Write(addr+2+uint64(count), uint64(key.ASCII), memory.W8); fault != nil {
			return fault
		}
		count++
		if key.ASCII == '\r' {
			break
		}
	}
	return m.Mem.Write(addr+1, uint64(count), memory.W8)
}
