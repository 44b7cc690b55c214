/*
 * x86boot - BIOS service facade.
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

// Package bios implements the BIOS service facade invoked through the
// synthetic "PHP-BIOS" opcode (0F FF vv) that the IDT's hardware-vector
// stubs trampoline into: INT 10h (video), INT 13h (disk), INT 15h
// (system), INT 16h (keyboard), INT 1Ah (time of day) and INT 21h
// (DOS). It satisfies executor.BIOSHandler.
package bios

import (
	"time"

	"github.com/rcornwell/x86boot/boot"
	"github.com/rcornwell/x86boot/cpuregs"
	"github.com/rcornwell/x86boot/executor"
	"github.com/rcornwell/x86boot/keyboard"
	"github.com/rcornwell/x86boot/memory"
	"github.com/rcornwell/x86boot/video"
)

// BDA offsets this facade reads and writes, matching the IBM PC BIOS
// Data Area layout guest code expects to find at segment 0x40.
const (
	bdaBase        = 0x400
	bdaTickCounter = 0x6C // dword at 0x46C: PIT ticks since midnight
	bdaTickOverflow = 0x70 // byte at 0x470: set to 1 when the tick counter wraps
	tickRollover   = 0x1800B0
)

// Handler wires the guest-visible BIOS vectors to this emulator's
// device state: a bootable disk image, a text-mode framebuffer, and a
// keyboard queue.
type Handler struct {
	Disk  *boot.Stream
	Video *video.Framebuffer
	Keys  *keyboard.Buffer

	// MaxRAM is the top of usable RAM reported by the INT 15h/E820
	// memory map, in bytes.
	MaxRAM uint64

	// Now returns the host wall-clock time used by INT 1Ah AH=02/04.
	// Defaults to time.Now if nil.
	Now func() time.Time
}

// Service implements executor.BIOSHandler: it dispatches on the
// vector the synthetic opcode carries (the vv immediate) and AH, runs
// the matching handler, and returns nil (SUCCESS, guest execution
// continues after IRET) or a *memory.FaultInfo only when memory access
// itself faults. "EXIT" conditions (INT 21h/4C, INT 20h) are signaled
// by setting m.Exited (and m.Halted, so no further instruction runs),
// which the runtime loop reports as StatusExited.
func (h *Handler) Service(vector byte, m *executor.Machine) *memory.FaultInfo {
	ah := m.Regs.Reg8High(cpuregs.RAX)
	switch vector {
	case 0x10:
		return h.video10(m, ah)
	case 0x13:
		return h.disk13(m, ah)
	case 0x15:
		return h.system15(m, ah)
	case 0x16:
		return h.keyboard16(m, ah)
	case 0x1A:
		return h.tod1A(m, ah)
	case 0x20:
		m.Halted = true
		m.Exited = true
		return nil
	case 0x21:
		return h.dos21(m, ah)
	}
	return nil
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func setCF(m *executor.Machine, v bool) { m.Regs.SetCF(v) }
func setZF(m *executor.Machine, v bool) { m.Regs.SetZF(v) }
