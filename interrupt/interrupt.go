/*
 * x86boot - Interrupt/exception delivery through the IVT/IDT.
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

// Package interrupt implements gate lookup and the push/load transfer
// that delivers a fault, a software INT, or an external IRQ to guest
// code (no ticker in this module raises one): real-mode 4-byte IVT entries, protected-mode
// 8-byte IDT gates, and long-mode 16-byte gates, with the
// corresponding IRET reversal. It satisfies executor.InterruptController
// so the executor can remain ignorant of gate-table layout.
package interrupt

import (
	"github.com/rcornwell/x86boot/cpuregs"
	"github.com/rcornwell/x86boot/executor"
	"github.com/rcornwell/x86boot/memory"
)

// Vectors that push an error code onto the stack, per the SDM.
var vectorsWithErrorCode = map[byte]bool{
	8: true, 10: true, 11: true, 12: true, 13: true, 14: true, 17: true,
}

// gate is the mode-normalized form of a real-mode IVT entry or a
// protected/long-mode IDT descriptor.
type gate struct {
	offset   uint64
	selector uint16
	present  bool
	dpl      uint8
	ist      uint8 // long-mode only
}

// Controller is the default InterruptController: it owns no state of
// its own beyond what cpuregs.State and memory.Memory already carry,
// mirroring the executor's stateless-handler style.
type Controller struct {
	// HaltOnTripleFault is invoked when double-fault delivery itself
	// faults. The runtime package wires this to its run-loop shutdown.
	HaltOnTripleFault func(m *executor.Machine)
}

// New returns a Controller ready to be assigned to Machine.Intr.
func New() *Controller { return &Controller{} }

func gpFault(errorCode uint32) *memory.FaultInfo {
	return &memory.FaultInfo{Vector: 13, ErrorCode: errorCode}
}

// readGate selects and decodes the gate for vector, per the current
// mode's gate table shape.
func readGate(m *executor.Machine, vector byte) (gate, *memory.FaultInfo) {
	regs := m.Regs
	switch regs.Mode() {
	case cpuregs.RealMode:
		addr := regs.IDTR.Base + uint64(vector)*4
		if uint64(vector)*4+3 > uint64(regs.IDTR.Limit) {
			return gate{}, gpFault(uint32(vector)*8 + 2)
		}
		v, fault := m.Mem.Read(addr, memory.W32)
		if fault != nil {
			return gate{}, fault
		}
		return gate{offset: v & 0xFFFF, selector: uint16(v >> 16), present: true, dpl: 0}, nil

	case cpuregs.ProtectedMode:
		addr := regs.IDTR.Base + uint64(vector)*8
		if uint64(vector)*8+7 > uint64(regs.IDTR.Limit) {
			return gate{}, gpFault(uint32(vector)*8 + 2)
		}
		lo, fault := m.Mem.Read(addr, memory.W32)
		if fault != nil {
			return gate{}, fault
		}
		hi, fault := m.Mem.Read(addr+4, memory.W32)
		if fault != nil {
			return gate{}, fault
		}
		offset := (lo & 0xFFFF) | (hi & 0xFFFF0000)
		selector := uint16(lo >> 16)
		access := uint8(hi >> 8)
		return gate{
			offset:   offset,
			selector: selector,
			present:  access&0x80 != 0,
			dpl:      (access >> 5) & 3,
		}, nil

	default: // LongMode
		addr := regs.IDTR.Base + uint64(vector)*16
		if uint64(vector)*16+15 > uint64(regs.IDTR.Limit) {
			return gate{}, gpFault(uint32(vector)*8 + 2)
		}
		lo, fault := m.Mem.Read(addr, memory.W32)
		if fault != nil {
			return gate{}, fault
		}
		hi, fault := m.Mem.Read(addr+4, memory.W32)
		if fault != nil {
			return gate{}, fault
		}
		offsetHi, fault := m.Mem.Read(addr+8, memory.W32)
		if fault != nil {
			return gate{}, fault
		}
		offset := (lo & 0xFFFF) | (hi & 0xFFFF0000) | (offsetHi << 32)
		selector := uint16(lo >> 16)
		access := uint8(hi >> 8)
		return gate{
			offset:   offset,
			selector: selector,
			present:  access&0x80 != 0,
			dpl:      (access >> 5) & 3,
			ist:      uint8(hi) & 7,
		}, nil
	}
}

// Raise implements executor.InterruptController: it delivers a fault,
// software INT, or external IRQ to the gate for vector, pushing the
// return context sized per the current mode onto the stack active at
// the time; no stack switch is made for a higher-privilege gate
// selector. On a fault while
// reading or pushing through the gate, it escalates to #DF and, if
// that too faults, signals a triple fault via HaltOnTripleFault.
func (c *Controller) Raise(m *executor.Machine, vector byte, errorCode uint32, hasErrorCode bool) *memory.FaultInfo {
	if fault := c.deliver(m, vector, errorCode, hasErrorCode); fault != nil {
		return c.escalate(m, fault)
	}
	return nil
}

func (c *Controller) escalate(m *executor.Machine, original *memory.FaultInfo) *memory.FaultInfo {
	if original.Vector == 8 {
		// A fault raised while already delivering #DF: triple fault.
		if c.HaltOnTripleFault != nil {
			c.HaltOnTripleFault(m)
		}
		m.Halted = true
		return nil
	}
	if fault := c.deliver(m, 8, 0, true); fault != nil {
		if c.HaltOnTripleFault != nil {
			c.HaltOnTripleFault(m)
		}
		m.Halted = true
		return nil
	}
	return nil
}

func (c *Controller) deliver(m *executor.Machine, vector byte, errorCode uint32, hasErrorCode bool) *memory.FaultInfo {
	regs := m.Regs
	g, fault := readGate(m, vector)
	if fault != nil {
		return fault
	}
	if !g.present {
		return gpFault(uint32(vector)*8 + 2)
	}

	mode := regs.Mode()
	stackSize := uint8(16)
	switch mode {
	case cpuregs.ProtectedMode:
		stackSize = regs.SegDefaultSize(cpuregs.SS)
	case cpuregs.LongMode:
		stackSize = 64
	}

	oldSS := regs.Seg(cpuregs.SS)
	oldCS := regs.Seg(cpuregs.CS)
	oldRIP := regs.RIP
	oldFlags := regs.RFlags
	ssBase := oldSS.Desc.Base
	sp := regs.Reg64(cpuregs.RSP)

	// Privilege/stack switch to a TSS-provided stack is not modeled:
	// this emulator never installs a TSS, so every gate runs on the
	// stack already active at fault time. Boot-stage code (the only
	// target) never raises a ring transition through the IDT.
	if mode == cpuregs.LongMode {
		sp &^= 0xF // 16-byte align before pushing, per the long-mode gate algorithm
	}

	pushWidth := memory.Width(stackSize)
	slot := uint64(stackSize) / 8

	push := func(v uint64) *memory.FaultInfo {
		sp -= slot
		return m.Mem.Write(ssBase+sp, v, pushWidth)
	}

	if mode == cpuregs.LongMode {
		if fault := push(uint64(oldSS.Selector)); fault != nil {
			return fault
		}
		if fault := push(regs.Reg64(cpuregs.RSP)); fault != nil {
			return fault
		}
	}
	if fault := push(oldFlags); fault != nil {
		return fault
	}
	if fault := push(uint64(oldCS.Selector)); fault != nil {
		return fault
	}
	if fault := push(oldRIP); fault != nil {
		return fault
	}
	if hasErrorCode || vectorsWithErrorCode[vector] {
		if fault := push(uint64(errorCode)); fault != nil {
			return fault
		}
	}

	regs.SetReg64(cpuregs.RSP, sp)

	seg := regs.Seg(cpuregs.CS)
	seg.Selector = g.selector
	if mode == cpuregs.RealMode {
		seg.Desc.Base = uint64(g.selector) << 4
	}
	regs.SetSeg(cpuregs.CS, seg)
	regs.RIP = g.offset

	regs.SetFlag(cpuregs.FlagRF, false)
	regs.SetIF(false)
	regs.SetTF(false)
	return nil
}

// Return implements executor.InterruptController's IRET reversal,
// sized per the current mode's stack form.
func (c *Controller) Return(m *executor.Machine) *memory.FaultInfo {
	regs := m.Regs
	mode := regs.Mode()
	stackSize := uint8(16)
	switch mode {
	case cpuregs.ProtectedMode:
		stackSize = regs.SegDefaultSize(cpuregs.SS)
	case cpuregs.LongMode:
		stackSize = 64
	}
	ssBase := regs.Seg(cpuregs.SS).Desc.Base
	sp := regs.Reg64(cpuregs.RSP)
	slot := uint64(stackSize) / 8
	pop := func() (uint64, *memory.FaultInfo) {
		v, fault := m.Mem.Read(ssBase+sp, memory.Width(stackSize))
		sp += slot
		return v, fault
	}

	ip, fault := pop()
	if fault != nil {
		return fault
	}
	cs, fault := pop()
	if fault != nil {
		return fault
	}
	flags, fault := pop()
	if fault != nil {
		return fault
	}
	if mode == cpuregs.LongMode {
		newSP, fault := pop()
		if fault != nil {
			return fault
		}
		newSS, fault := pop()
		if fault != nil {
			return fault
		}
		seg := regs.Seg(cpuregs.SS)
		seg.Selector = uint16(newSS)
		regs.SetSeg(cpuregs.SS, seg)
		sp = newSP
	} else {
		regs.SetReg64(cpuregs.RSP, sp)
	}

	seg := regs.Seg(cpuregs.CS)
	seg.Selector = uint16(cs)
	if mode == cpuregs.RealMode {
		seg.Desc.Base = uint64(cs) << 4
	}
	regs.SetSeg(cpuregs.CS, seg)
	regs.RIP = ip
	mask := widthMask(stackSize)
	regs.RFlags = (regs.RFlags &^ mask) | (flags & mask)
	return nil
}

func widthMask(size uint8) uint64 {
	if size >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(size)) - 1
}
