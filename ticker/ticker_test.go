/*
 * x86boot - Ticker tests.
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
	"testing"
	"time"

	"github.com/rcornwell/x86boot/cpuregs"
	"github.com/rcornwell/x86boot/executor"
	"github.com/rcornwell/x86boot/keyboard"
	"github.com/rcornwell/x86boot/memory"
)

func newMachine(t *testing.T) *executor.Machine {
	t.Helper()
	mem := memory.New(1 << 20)
	mem.Allocate(0, 1<<20)
	regs := cpuregs.NewState()
	return executor.New(regs, mem)
}

type fakeTicker struct {
	interval int
	calls    int
}

func (f *fakeTicker) Interval() int { return f.interval }
func (f *fakeTicker) Tick(m *executor.Machine) { f.calls++ }

func TestRegistryFiresAtOwnInterval(t *testing.T) {
	r := New()
	every3 := &fakeTicker{interval: 3}
	everyBoundary := &fakeTicker{interval: 0}
	r.Add(every3)
	r.Add(everyBoundary)

	m := newMachine(t)
	for i := 0; i < 6; i++ {
		r.Tick(m)
	}
	if everyBoundary.calls != 6 {
		t.Fatalf("interval-0 ticker fired %d times, want 6", everyBoundary.calls)
	}
	if every3.calls != 2 {
		t.Fatalf("interval-3 ticker fired %d times, want 2", every3.calls)
	}
}

func TestPITTickerAdvancesBDACounter(t *testing.T) {
	m := newMachine(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	p := &PITTicker{Clock: func() time.Time { return now }, last: base}

	now = base.Add(1 * time.Second)
	p.Tick(m)

	v, fault := m.Mem.Read(bdaBase+bdaTickCounter, memory.W32)
	if fault != nil {
		t.Fatalf("read faulted: %v", fault)
	}
	if v == 0 {
		t.Fatalf("expected the BDA tick counter to advance after 1 elapsed second")
	}
}

func TestDeviceTickerCompletesWaitingRead(t *testing.T) {
	m := newMachine(t)
	keys := keyboard.New()
	keys.SetWaiting(true)
	m.Halted = true
	keys.Push(0x1E, 'a')

	d := &DeviceTicker{Keys: keys}
	d.Tick(m)

	if keys.Waiting() {
		t.Fatalf("expected Waiting() cleared once a key was delivered")
	}
	if m.Halted {
		t.Fatalf("expected Halted cleared once a key was delivered")
	}
	if got := m.Regs.Reg8Low(cpuregs.RAX); got != 'a' {
		t.Fatalf("AL = %q, want 'a'", got)
	}
}

func TestDeviceTickerNoOpWhenNotWaiting(t *testing.T) {
	m := newMachine(t)
	keys := keyboard.New()
	keys.Push(0x1E, 'a')

	d := &DeviceTicker{Keys: keys}
	d.Tick(m)

	if _, ok := keys.Peek(); !ok {
		t.Fatalf("key should remain queued when nothing was waiting for it")
	}
}
