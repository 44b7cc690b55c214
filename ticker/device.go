/*
 * x86boot - Device (keyboard) ticker.
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
	"github.com/rcornwell/x86boot/cpuregs"
	"github.com/rcornwell/x86boot/executor"
	"github.com/rcornwell/x86boot/keyboard"
)

// deviceInterval is the retired-instruction period the device ticker
// polls at, per the tick registry's interval contract.
const deviceInterval = 100

// DeviceTicker polls the host keyboard queue non-blockingly. When a
// blocking INT 16h read has parked the machine (Keys.Waiting and
// m.Halted), it completes the wait by loading AX and clearing both
// flags so the runtime loop resumes fetching at the IRET that follows
// the BIOS call.
type DeviceTicker struct {
	Keys *keyboard.Buffer
}

func (d *DeviceTicker) Interval() int { return deviceInterval }

func (d *DeviceTicker) Tick(m *executor.Machine) {
	if d.Keys == nil || !d.Keys.Waiting() {
		return
	}
	key, ok := d.Keys.TryPop()
	if !ok {
		return
	}
	m.Regs.SetReg16(cpuregs.RAX, uint16(key.Scan)<<8|uint16(key.ASCII))
	d.Keys.SetWaiting(false)
	m.Halted = false
}
