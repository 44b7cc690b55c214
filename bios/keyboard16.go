/*
 * x86boot - INT 16h keyboard services.
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

func (h *Handler) keyboard16(m *executor.Machine, ah byte) *memory.FaultInfo {
	regs := m.Regs
	switch ah {
	case 0x00, 0x10: // block until a key is available
		if h.Keys == nil {
			return nil
		}
		key, ok := h.Keys.TryPop()
		if !ok {
			h.Keys.SetWaiting(true)
			m.Halted = true // HLT semantics: resumed by the device ticker
			return nil
		}
		regs.SetReg16(cpuregs.RAX, uint16(key.Scan)<<8|uint16(key.ASCII))

	case 0x01, 0x11: // non-blocking check: sets ZF if no key is ready
		if h.Keys == nil {
			setZF(m, true)
			return nil
		}
		key, ok := h.Keys.Peek()
		if !ok {
			setZF(m, true)
			return nil
		}
		regs.SetReg16(cpuregs.RAX, uint16(key.Scan)<<8|uint16(key.ASCII))
		setZF(m, false)

	case 0x02, 0x12: // shift flags: not tracked, reported as none pressed
		regs.SetReg8Low(cpuregs.RAX, 0)
	}
	return nil
}
