/*
 * x86boot - Keyboard input queue.
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

// Package keyboard is a small bounded FIFO of (scancode, ASCII) key
// events, fed by a host input reader running on its own goroutine and
// drained synchronously by the device ticker between instructions.
package keyboard

import "sync"

// QueueDepth bounds the FIFO; a boot-stage BIOS keyboard buffer is
// itself only 16-32 entries on real hardware, so this is generous.
const QueueDepth = 32

// Key is one (scancode, ASCII) pair as INT 16h AH=00/10 return it in
// AH:AL.
type Key struct {
	Scan  byte
	ASCII byte
}

// Buffer is a thread-safe bounded FIFO. The host-input goroutine calls
// Push; the emulator core, running on its own goroutine, calls TryPop
// and Waiting/SetWaiting from the device ticker and the INT 16h
// handler. A mutex guards it rather than a channel because the core
// needs a non-blocking peek (TryPop) as well as a flag it can set and
// clear (waiting), which a channel alone awkwardly expresses.
type Buffer struct {
	mu      sync.Mutex
	keys    []Key
	waiting bool
}

// New returns an empty Buffer.
func New() *Buffer { return &Buffer{} }

// Push enqueues a key event, dropping it if the queue is full. Host LF
// (0x0A) is translated to CR (0x0D) here, matching the BIOS convention
// that Enter delivers a carriage return.
func (b *Buffer) Push(scan, ascii byte) {
	if ascii == 0x0A {
		ascii = 0x0D
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.keys) >= QueueDepth {
		return
	}
	b.keys = append(b.keys, Key{Scan: scan, ASCII: ascii})
}

// TryPop removes and returns the oldest queued key, or ok=false if the
// queue is empty.
func (b *Buffer) TryPop() (key Key, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.keys) == 0 {
		return Key{}, false
	}
	key = b.keys[0]
	b.keys = b.keys[1:]
	return key, true
}

// Peek returns the oldest queued key without removing it, used by INT
// 16h AH=01/11 (non-blocking check).
func (b *Buffer) Peek() (key Key, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.keys) == 0 {
		return Key{}, false
	}
	return b.keys[0], true
}

// SetWaiting marks the run as blocked in INT 16h AH=00/10 until a key
// arrives. The device ticker checks this flag to know when to deliver
// a dequeued key into AX rather than leaving it queued.
func (b *Buffer) SetWaiting(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.waiting = v
}

// Waiting reports whether the run is blocked waiting for a key.
func (b *Buffer) Waiting() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.waiting
}
