/*
 * x86boot - Interactive inspection console.
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

// Package monitor is a small interactive console over a runtime.Context:
// single-step, free-run, register/memory dump, and an instruction-count
// breakpoint. It is modeled on the teacher's command/parser prefix-match
// command table and command/reader liner-driven prompt loop, scoped down
// from the mainframe's attach/detach/IPL device vocabulary to the
// handful of operations useful for debugging a boot sector.
package monitor

import (
	"errors"
	"strconv"
	"strings"

	"github.com/rcornwell/x86boot/disasm"
	"github.com/rcornwell/x86boot/runtime"
)

// Console wraps a runtime.Context with the state the monitor commands
// need across invocations: how many instructions have retired and the
// instruction count (if any) to stop at.
type Console struct {
	Ctx     *runtime.Context
	Steps   uint64
	BreakAt uint64 // 0 means no breakpoint armed
	Quit    bool
}

// New wraps ctx in a Console ready to drive from ProcessCommand.
func New(ctx *runtime.Context) *Console {
	return &Console{Ctx: ctx}
}

type cmd struct {
	name    string
	min     int
	process func(args []string, c *Console) (string, error)
}

var cmdList = []cmd{
	{name: "step", min: 1, process: cmdStep},
	{name: "continue", min: 1, process: cmdContinue},
	{name: "regs", min: 1, process: cmdRegs},
	{name: "mem", min: 1, process: cmdMem},
	{name: "break", min: 2, process: cmdBreak},
	{name: "unbreak", min: 3, process: cmdUnbreak},
	{name: "disasm", min: 2, process: cmdDisasm},
	{name: "quit", min: 1, process: cmdQuit},
	{name: "help", min: 1, process: cmdHelp},
}

// matchCommand reports whether name is an unambiguous prefix (at
// least m.min characters) of m.name, the same minimum-abbreviation
// rule command/parser.matchCommand uses.
func matchCommand(m cmd, name string) bool {
	if len(name) < m.min || len(name) > len(m.name) {
		return false
	}
	return m.name[:len(name)] == name
}

func matchList(name string) []cmd {
	if name == "" {
		return nil
	}
	var match []cmd
	for _, m := range cmdList {
		if matchCommand(m, name) {
			match = append(match, m)
		}
	}
	return match
}

// ProcessCommand parses and runs one line of console input, returning
// the text to print (if any). An unrecognized or ambiguous command
// name is reported as an error rather than silently ignored.
func ProcessCommand(line string, c *Console) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	name := strings.ToLower(fields[0])
	match := matchList(name)
	switch len(match) {
	case 0:
		return "", errors.New("command not found: " + name)
	case 1:
		return match[0].process(fields[1:], c)
	default:
		return "", errors.New("ambiguous command: " + name)
	}
}

func cmdQuit(_ []string, c *Console) (string, error) {
	c.Quit = true
	return "", nil
}

func cmdHelp(_ []string, _ *Console) (string, error) {
	return "commands: step [n], continue, regs, mem <addr> [len], " +
		"break <count>, unbreak, disasm <addr> [n], quit", nil
}

func cmdStep(args []string, c *Console) (string, error) {
	n := uint64(1)
	if len(args) > 0 {
		v, err := strconv.ParseUint(args[0], 0, 64)
		if err != nil {
			return "", errors.New("step count must be a number: " + args[0])
		}
		n = v
	}
	var last runtime.Outcome
	for i := uint64(0); i < n; i++ {
		last = c.Ctx.Step()
		c.Steps++
		if last != (runtime.Outcome{}) {
			break
		}
	}
	return outcomeReport(last, c), nil
}

// cmdContinue free-runs until the emulator halts/exits/faults or the
// armed instruction-count breakpoint is reached, whichever comes
// first - the monitor's only breakpoint kind, per SPEC_FULL.md's
// "set/clear an instruction-count breakpoint" scope.
func cmdContinue(_ []string, c *Console) (string, error) {
	for {
		if c.BreakAt != 0 && c.Steps >= c.BreakAt {
			return "breakpoint hit at step " + strconv.FormatUint(c.Steps, 10), nil
		}
		outcome := c.Ctx.Step()
		c.Steps++
		if outcome != (runtime.Outcome{}) {
			return outcomeReport(outcome, c), nil
		}
	}
}

func outcomeReport(o runtime.Outcome, c *Console) string {
	if o == (runtime.Outcome{}) {
		return "stepped " + strconv.FormatUint(c.Steps, 10) + " instruction(s)"
	}
	report := "stopped: " + o.Status.String()
	if o.Fault != nil {
		report += " (fault vector " + strconv.Itoa(int(o.Fault.Vector)) + ")"
	}
	return report
}

func cmdBreak(args []string, c *Console) (string, error) {
	if len(args) != 1 {
		return "", errors.New("usage: break <instruction-count>")
	}
	n, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		return "", errors.New("break count must be a number: " + args[0])
	}
	c.BreakAt = n
	return "breakpoint armed at step " + args[0], nil
}

func cmdUnbreak(_ []string, c *Console) (string, error) {
	c.BreakAt = 0
	return "breakpoint cleared", nil
}

func cmdDisasm(args []string, c *Console) (string, error) {
	if len(args) < 1 {
		return "", errors.New("usage: disasm <addr> [count]")
	}
	addr, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		return "", errors.New("address must be a number: " + args[0])
	}
	count := 1
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return "", errors.New("count must be a number: " + args[1])
		}
		count = n
	}
	return disasm.Range(c.Ctx.Machine, addr, count)
}
