/*
 * x86boot - Disassembler tests.
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

package disasm

import (
	"strings"
	"testing"

	"github.com/rcornwell/x86boot/cpuregs"
	"github.com/rcornwell/x86boot/decoder"
	"github.com/rcornwell/x86boot/memory"
)

func decodeAt(t *testing.T, code []byte) (*decoder.Instruction, []byte) {
	t.Helper()
	mem := memory.New(memory.DefaultMaxAddr)
	for i, b := range code {
		mem.Write(uint64(0x7C00+i), uint64(b), memory.W8)
	}
	regs := cpuregs.NewState()
	regs.RIP = 0x7C00
	mem.BeginFetch(regs.RIP)
	inst, err := decoder.Decode(mem, regs)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return inst, code
}

func TestLineIncludesAddressBytesAndMnemonic(t *testing.T) {
	// B0 48 -> MOV AL, 0x48
	inst, code := decodeAt(t, []byte{0xB0, 0x48})
	line := Line(0x7C00, code, inst)

	if !strings.Contains(line, "00007c00:") {
		t.Errorf("line = %q, want address prefix", line)
	}
	if !strings.Contains(line, "b0 48") {
		t.Errorf("line = %q, want raw bytes", line)
	}
	if !strings.Contains(line, inst.Mnemonic) {
		t.Errorf("line = %q, want mnemonic %q", line, inst.Mnemonic)
	}
	if !strings.Contains(line, "0x48") {
		t.Errorf("line = %q, want immediate operand", line)
	}
}

func TestLineFallsBackWhenMnemonicUnset(t *testing.T) {
	inst := &decoder.Instruction{Length: 1}
	line := Line(0, []byte{0x90}, inst)
	if !strings.Contains(line, "(unknown)") {
		t.Errorf("line = %q, want (unknown) placeholder", line)
	}
}
