/*
 * x86boot - Condition code evaluation for Jcc/SETcc/CMOVcc.
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

package executor

// evalCond evaluates one of the 16 x86 condition codes against the
// current flags, shared by Jcc, SETcc and CMOVcc (which differ only in
// what they do with the boolean).
func (m *Machine) evalCond(cc uint8) bool {
	switch cc & 0xF {
	case 0x0: // O
		return m.Regs.OF()
	case 0x1: // NO
		return !m.Regs.OF()
	case 0x2: // B/C/NAE
		return m.Regs.CF()
	case 0x3: // NB/AE/NC
		return !m.Regs.CF()
	case 0x4: // E/Z
		return m.Regs.ZF()
	case 0x5: // NE/NZ
		return !m.Regs.ZF()
	case 0x6: // BE/NA
		return m.Regs.CF() || m.Regs.ZF()
	case 0x7: // NBE/A
		return !m.Regs.CF() && !m.Regs.ZF()
	case 0x8: // S
		return m.Regs.SF()
	case 0x9: // NS
		return !m.Regs.SF()
	case 0xA: // P/PE
		return m.Regs.PF()
	case 0xB: // NP/PO
		return !m.Regs.PF()
	case 0xC: // L/NGE
		return m.Regs.SF() != m.Regs.OF()
	case 0xD: // NL/GE
		return m.Regs.SF() == m.Regs.OF()
	case 0xE: // LE/NG
		return m.Regs.ZF() || m.Regs.SF() != m.Regs.OF()
	case 0xF: // NLE/G
		return !m.Regs.ZF() && m.Regs.SF() == m.Regs.OF()
	}
	return false
}
