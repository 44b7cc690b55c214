/*
 * x86boot - Instruction-boundary tickers.
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

// Package ticker runs periodic device work between instructions: a
// wall-clock-driven PIT tick counter and a keyboard poller, both
// invoked synchronously from the runtime's fetch/decode/execute loop
// so they never race the executor.
package ticker

import (
	"time"

	"github.com/rcornwell/x86boot/executor"
)

// Ticker is one periodic unit of device work. Interval is expressed in
// retired instructions (0 means "every boundary"); Tick is called by
// the Registry once Interval instructions have retired since its last
// call.
type Ticker interface {
	Interval() int
	Tick(m *executor.Machine)
}

// Registry runs its tickers at instruction boundaries, tracking a
// per-ticker retired-instruction count so each fires on its own
// period independent of the others.
type Registry struct {
	tickers []entry
}

type entry struct {
	t       Ticker
	elapsed int
}

// New returns a Registry with no tickers; Add registers each one.
func New() *Registry { return &Registry{} }

// Add registers a ticker.
func (r *Registry) Add(t Ticker) {
	r.tickers = append(r.tickers, entry{t: t})
}

// Tick is invoked by the runtime after every retired instruction (and
// while the machine is halted, so a key arriving for a parked INT 16h
// read can still resume it).
func (r *Registry) Tick(m *executor.Machine) {
	for i := range r.tickers {
		e := &r.tickers[i]
		e.elapsed++
		if e.t.Interval() == 0 || e.elapsed >= e.t.Interval() {
			e.elapsed = 0
			e.t.Tick(m)
		}
	}
}

// Clock abstracts wall-clock reads so PITTicker is testable without
// sleeping; Wall wraps time.Now for production use.
type Clock func() time.Time

// Wall is the production Clock.
func Wall() time.Time { return time.Now() }
