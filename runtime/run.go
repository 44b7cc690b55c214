/*
 * x86boot - Run loop and termination outcomes.
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

package runtime

import (
	"github.com/rcornwell/x86boot/disasm"
	"github.com/rcornwell/x86boot/memory"
)

// Status classifies why Run stopped. A software fault that the
// interrupt controller could deliver to the guest does not appear
// here at all: Run only returns once execution actually stops, the
// same way the teacher's core loop only reports back on Stop() rather
// than on every cycle.
type Status int

const (
	// StatusHalted means the machine is halted (HLT) with no blocking
	// keyboard read waiting for the device ticker: a plain
	// end-of-program halt.
	StatusHalted Status = iota
	// StatusExited means the guest asked to terminate (INT 20h, or
	// INT 21h/AH=4C).
	StatusExited
	// StatusTripleFault means a double-fault delivery itself faulted.
	StatusTripleFault
	// StatusFatal means a CPU fault occurred that the interrupt
	// controller could not convert into a delivered interrupt (no
	// Machine.Intr installed, or the gate read itself faulted with no
	// controller to escalate it) - this is the FatalEmulatorError case,
	// the only fault variant that escapes the run loop instead of being
	// delivered to the guest.
	StatusFatal
)

// String names a Status for log lines and test failure messages.
func (s Status) String() string {
	switch s {
	case StatusHalted:
		return "halted"
	case StatusExited:
		return "exited"
	case StatusTripleFault:
		return "triple-fault"
	case StatusFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome is the result type Run returns instead of panicking or
// returning a plain error: a run either winds down cleanly (Halted,
// Exited), catastrophically (TripleFault), or hits a fault this
// emulator has no gate table to deliver (Fatal, carrying the fault
// that could not be delivered).
type Outcome struct {
	Status Status
	Fault  *memory.FaultInfo
}

// Run drives the fetch/decode/execute/tick cycle until the guest
// halts, exits, or a fault escapes delivery. Every Step is followed by
// a ticker pass regardless of Halted, since the device ticker is what
// clears Halted once a key completes a parked INT 16h read (the PIT
// ticker only advances the BDA tick counter).
func (c *Context) Run() Outcome {
	for {
		if !c.Machine.Halted {
			if c.Trace {
				if line, err := disasm.Range(c.Machine, c.Machine.Regs.RIP, 1); err == nil {
					c.Logger.Debug("trace: " + line)
				}
			}
			if fault := c.Machine.Step(); fault != nil {
				outcome, handled := c.deliverOrStop(fault)
				if !handled {
					return outcome
				}
			}
		}

		c.Tickers.Tick(c.Machine)

		if c.tripleFaulted {
			return Outcome{Status: StatusTripleFault}
		}
		if c.Machine.Exited {
			return Outcome{Status: StatusExited}
		}
		if c.Machine.Halted && !c.Keys.Waiting() {
			// HLT with nothing left to wake it: end of program.
			return Outcome{Status: StatusHalted}
		}
	}
}

// deliverOrStop attempts to hand a CPU fault to the interrupt
// controller. It reports (outcome, false) only when no controller is
// wired to deliver the fault at all, or the controller itself could
// not deliver it (FatalEmulatorError); a successfully delivered fault
// reports (zero Outcome, true) so the caller keeps looping.
func (c *Context) deliverOrStop(fault *memory.FaultInfo) (Outcome, bool) {
	if c.Intr == nil {
		return Outcome{Status: StatusFatal, Fault: fault}, false
	}
	hasErrorCode := hasErrorCodeVector(fault.Vector)
	if delivery := c.Intr.Raise(c.Machine, fault.Vector, fault.ErrorCode, hasErrorCode); delivery != nil {
		return Outcome{Status: StatusFatal, Fault: delivery}, false
	}
	return Outcome{}, true
}

func hasErrorCodeVector(vector uint8) bool {
	switch vector {
	case 8, 10, 11, 12, 13, 14, 17:
		return true
	default:
		return false
	}
}

// Step advances exactly one instruction and ticks once, for callers
// (the monitor package's single-step command) that want finer control
// than Run's free-running loop.
func (c *Context) Step() Outcome {
	if !c.Machine.Halted {
		if fault := c.Machine.Step(); fault != nil {
			if outcome, handled := c.deliverOrStop(fault); !handled {
				return outcome
			}
		}
	}
	c.Tickers.Tick(c.Machine)
	if c.tripleFaulted {
		return Outcome{Status: StatusTripleFault}
	}
	if c.Machine.Exited {
		return Outcome{Status: StatusExited}
	}
	if c.Machine.Halted && !c.Keys.Waiting() {
		return Outcome{Status: StatusHalted}
	}
	return Outcome{}
}
