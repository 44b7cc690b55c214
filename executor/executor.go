/*
 * x86boot - Instruction execution core.
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

// Package executor carries out the semantics of a decoder.Instruction
// against a cpuregs.State and a memory.Memory: it reads operands,
// computes results and flags, writes operands back, and advances RIP.
// Dispatch is table-driven, following the teacher's [256]func opcode
// table style, rather than a long if/else or switch chain.
package executor

import (
	"github.com/rcornwell/x86boot/cpuregs"
	"github.com/rcornwell/x86boot/decoder"
	"github.com/rcornwell/x86boot/memory"
)

// BIOSHandler services the synthetic 0F FF vv "PHP-BIOS" opcode. It is
// injected so this package has no direct dependency on the bios
// package (which in turn depends on executor for register/memory
// access) - the same inversion the teacher uses between emu/cpu and
// emu/device via channels, adapted here to a plain interface since
// BIOS calls are synchronous rather than channel-dispatched.
type BIOSHandler interface {
	Service(vector byte, m *Machine) *memory.FaultInfo
}

// DebugHook is invoked for the reserved F1 opcode. No package in this
// module installs one; a nil hook makes F1 a no-op.
type DebugHook func(m *Machine)

// InterruptController delivers INT3/INT n/external IRQs through the
// IDT/IVT gate machinery (gate lookup, error-code push, #DF escalation)
// and reverses it on IRET. It is injected the same way BIOSHandler is,
// so this package stays independent of the interrupt package's
// gate-table internals. When nil, INT3, INT n and IRET fall back to the
// minimal real-mode IVT transfer built into this package, which is
// enough to run BIOS-call-driven boot sectors without a full IDT.
type InterruptController interface {
	Raise(m *Machine, vector byte, errorCode uint32, hasErrorCode bool) *memory.FaultInfo
	Return(m *Machine) *memory.FaultInfo
}

// opFunc carries out one instruction. It returns a non-nil fault when
// the instruction raised a CPU exception (#DE, #GP, #UD, ...) or a
// memory access faulted; the caller (runtime) is responsible for
// delivering it.
type opFunc func(m *Machine, inst *decoder.Instruction) *memory.FaultInfo

// Machine bundles the register file and memory a single CPU executes
// against, plus hooks for the BIOS facade and debug breakpoints.
type Machine struct {
	Regs *cpuregs.State
	Mem  *memory.Memory
	BIOS BIOSHandler
	Stop DebugHook
	Intr InterruptController

	// Halted is set by HLT and by a blocking INT 16h read; the runtime
	// loop stops stepping while it is set. Only the device ticker
	// clears it, when a key completes a parked INT 16h read.
	Halted bool

	// Exited is set by the BIOS facade for a guest-requested
	// termination (INT 20h, INT 21h/AH=4C), distinguishing "the
	// program is done" from an ordinary HLT or from a blocking INT 16h
	// read parked until the device ticker delivers a key.
	Exited bool

	table   [256]opFunc
	table0F [256]opFunc
}

// New builds a Machine with its opcode dispatch tables initialized.
func New(regs *cpuregs.State, mem *memory.Memory) *Machine {
	m := &Machine{Regs: regs, Mem: mem}
	m.createTables()
	return m
}

// udFault, deFault and gpFault build the CPU exceptions this package
// raises directly (as opposed to ones memory.Memory's Translator
// raises): #UD (vector 6, undefined opcode/unimplemented), #DE
// (vector 0, divide error/overflow), and #GP (vector 13, general
// protection, e.g. a privileged instruction at insufficient CPL).
func udFault() *memory.FaultInfo           { return &memory.FaultInfo{Vector: 6} }
func deFault() *memory.FaultInfo           { return &memory.FaultInfo{Vector: 0} }
func gpFault(code uint32) *memory.FaultInfo { return &memory.FaultInfo{Vector: 13, ErrorCode: code} }

// Step decodes and executes the instruction at the current RIP. RIP is
// set to the next instruction before the handler runs; a branch
// handler then overwrites RIP with its target.
func (m *Machine) Step() *memory.FaultInfo {
	linear := m.Regs.RIP
	m.Mem.BeginFetch(linear)
	inst, err := decoder.Decode(m.Mem, m.Regs)
	if err != nil {
		if f, ok := err.(*memory.FaultInfo); ok {
			return f
		}
		return &memory.FaultInfo{Vector: 6, FaultAddr: linear}
	}

	nextRIP := linear + uint64(inst.Length)
	m.Regs.RIP = nextRIP

	if inst.PHPBIOS {
		if m.BIOS == nil {
			return udFault()
		}
		return m.BIOS.Service(inst.Opcode[2], m)
	}
	if inst.DebugStop {
		if m.Stop != nil {
			m.Stop(m)
		}
		return nil
	}

	var fn opFunc
	if inst.OpcodeLen >= 2 {
		fn = m.table0F[inst.Opcode[1]]
	} else {
		fn = m.table[inst.Opcode[0]]
	}
	if fn == nil {
		return udFault()
	}
	return fn(m, inst)
}

func (m *Machine) opUnk(_ *decoder.Instruction) *memory.FaultInfo {
	return udFault()
}
