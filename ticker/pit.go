/*
 * x86boot - PIT BIOS tick counter.
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

package ticker

import (
	"time"

	"github.com/rcornwell/x86boot/executor"
	"github.com/rcornwell/x86boot/memory"
)

const (
	bdaBase         = 0x400
	bdaTickCounter  = 0x6C // offset in the BDA: dword at 0x46C
	bdaTickOverflow = 0x70 // offset in the BDA: byte at 0x470

	ticksPerSecond = 18.206481
	tickRollover   = 0x1800B0
)

// PITTicker advances the BIOS Data Area's midnight tick counter by
// wall-clock elapsed time rather than retired instruction count, so
// bootloader timeouts stay realistic regardless of how fast this
// emulator actually executes instructions.
type PITTicker struct {
	Clock Clock
	last  time.Time
}

// NewPIT returns a PITTicker using Wall as its clock unless overridden.
func NewPIT() *PITTicker {
	return &PITTicker{Clock: Wall, last: Wall()}
}

func (p *PITTicker) Interval() int { return 0 }

func (p *PITTicker) Tick(m *executor.Machine) {
	clock := p.Clock
	if clock == nil {
		clock = Wall
	}
	now := clock()
	if p.last.IsZero() {
		p.last = now
	}
	elapsed := now.Sub(p.last).Seconds()
	if elapsed <= 0 {
		return
	}
	delta := uint64(elapsed * ticksPerSecond)
	if delta == 0 {
		return
	}
	p.last = now

	cur, fault := m.Mem.Read(bdaBase+bdaTickCounter, memory.W32)
	if fault != nil {
		return
	}
	cur += delta
	if cur >= tickRollover {
		cur = 0
		m.Mem.Write(bdaBase+bdaTickOverflow, 1, memory.W8)
	}
	m.Mem.Write(bdaBase+bdaTickCounter, cur, memory.W32)
}
