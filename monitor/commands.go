/*
 * x86boot - Register and memory inspection commands.
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

package monitor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rcornwell/x86boot/cpuregs"
	"github.com/rcornwell/x86boot/memory"
)

func cmdRegs(_ []string, c *Console) (string, error) {
	regs := c.Ctx.Machine.Regs
	var b strings.Builder
	fmt.Fprintf(&b, "rip=%016x rflags=%016x mode=%s\n", regs.RIP, regs.RFlags, regs.Mode())
	fmt.Fprintf(&b, "rax=%016x rcx=%016x rdx=%016x rbx=%016x\n",
		regs.Reg64(cpuregs.RAX), regs.Reg64(cpuregs.RCX), regs.Reg64(cpuregs.RDX), regs.Reg64(cpuregs.RBX))
	fmt.Fprintf(&b, "rsp=%016x rbp=%016x rsi=%016x rdi=%016x\n",
		regs.Reg64(cpuregs.RSP), regs.Reg64(cpuregs.RBP), regs.Reg64(cpuregs.RSI), regs.Reg64(cpuregs.RDI))
	for _, s := range []struct {
		name string
		reg  cpuregs.SegName
	}{{"cs", cpuregs.CS}, {"ds", cpuregs.DS}, {"es", cpuregs.ES}, {"ss", cpuregs.SS}} {
		seg := regs.Seg(s.reg)
		fmt.Fprintf(&b, "%s=%04x(base=%08x) ", s.name, seg.Selector, seg.Desc.Base)
	}
	return b.String(), nil
}

func cmdMem(args []string, c *Console) (string, error) {
	if len(args) < 1 {
		return "", errors.New("usage: mem <addr> [length]")
	}
	addr, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		return "", errors.New("address must be a number: " + args[0])
	}
	length := uint64(16)
	if len(args) > 1 {
		n, err := strconv.ParseUint(args[1], 0, 64)
		if err != nil {
			return "", errors.New("length must be a number: " + args[1])
		}
		length = n
	}

	var b strings.Builder
	for row := uint64(0); row < length; row += 16 {
		fmt.Fprintf(&b, "%08x: ", addr+row)
		for col := uint64(0); col < 16 && row+col < length; col++ {
			v, fault := c.Ctx.Machine.Mem.Read(addr+row+col, memory.W8)
			if fault != nil {
				return b.String(), fmt.Errorf("read fault at %#x", addr+row+col)
			}
			fmt.Fprintf(&b, "%02x ", v)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
