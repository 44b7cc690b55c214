/*
 * x86boot - Runtime context: wires the CPU, memory, BIOS facade,
 * interrupt controller and tickers into one run.
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

// Package runtime assembles a Context from a bootable disk image: the
// register file, paged memory, the BIOS facade, interrupt delivery and
// the PIT/keyboard tickers, then drives the fetch/decode/execute loop
// per the spec's single-threaded cooperative scheduling model. This
// replaces the deep Machine/LogicBoard/CPU/Memory/Storage interface
// hierarchy a polymorphic design would use with one flat struct of
// plain fields, owned singly by the caller.
package runtime

import (
	"log/slog"

	"github.com/rcornwell/x86boot/bios"
	"github.com/rcornwell/x86boot/boot"
	"github.com/rcornwell/x86boot/cpuregs"
	"github.com/rcornwell/x86boot/executor"
	"github.com/rcornwell/x86boot/interrupt"
	"github.com/rcornwell/x86boot/keyboard"
	"github.com/rcornwell/x86boot/memory"
	"github.com/rcornwell/x86boot/ticker"
	"github.com/rcornwell/x86boot/video"
)

const (
	bootSectorLoadAddr = 0x7C00
	defaultMaxRAM      = 16 << 20 // 16 MiB, enough for the target small OSes
	defaultMemorySize  = 1 << 24  // physical address space this emulator allocates
)

// config accumulates Option values before New builds the Context.
type config struct {
	disk     *boot.Stream
	maxRAM   uint64
	memSize  uint64
	entry    uint64
	logger   *slog.Logger
	noSignature bool
	trace    bool
}

// Option configures a Context at construction time, following the
// functional-options style the teacher's config layer uses.
type Option func(*config)

// WithDisk attaches the bootable disk image the run loads its boot
// sector from and INT 13h reads through.
func WithDisk(s *boot.Stream) Option {
	return func(c *config) { c.disk = s }
}

// WithMaxRAM sets the usable RAM size reported by INT 15h/E820.
func WithMaxRAM(n uint64) Option {
	return func(c *config) { c.maxRAM = n }
}

// WithMemorySize sets the size of the physical address space backing
// this run (distinct from MaxRAM, which is only what the guest is
// told is usable).
func WithMemorySize(n uint64) Option {
	return func(c *config) { c.memSize = n }
}

// WithEntrypoint overrides the linear address execution starts at.
// Defaults to 0x7C00, the MBR boot-sector load address.
func WithEntrypoint(addr uint64) Option {
	return func(c *config) { c.entry = addr }
}

// WithLogger overrides the structured logger used for run diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithoutSignatureCheck skips VerifyBootSignature, for images (El
// Torito boot images copied out of an ISO) that are not itself a raw
// 0x55AA MBR.
func WithoutSignatureCheck() Option {
	return func(c *config) { c.noSignature = true }
}

// WithTrace enables a per-instruction disassembly line on the debug
// log, the emulator's diagnostic call-trace (§3's "debug/trace
// knobs") made visible at the coarsest granularity; it never affects
// execution semantics.
func WithTrace() Option {
	return func(c *config) { c.trace = true }
}

// Context is the flat, single-owner bundle of everything one run
// needs: the executing Machine, the device facades it calls into, and
// the tickers that run between instructions.
type Context struct {
	Machine *executor.Machine
	Disk    *boot.Stream
	BIOS    *bios.Handler
	Intr    *interrupt.Controller
	Tickers *ticker.Registry
	Video   *video.Framebuffer
	Keys    *keyboard.Buffer
	Logger  *slog.Logger
	Trace   bool

	tripleFaulted bool
}

// New builds a Context from a bootable disk image, loading its first
// sector at the entrypoint address and verifying its boot signature
// unless WithoutSignatureCheck was given.
func New(opts ...Option) (*Context, error) {
	cfg := &config{
		maxRAM:  defaultMaxRAM,
		memSize: defaultMemorySize,
		entry:   bootSectorLoadAddr,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.disk != nil && !cfg.noSignature {
		if err := cfg.disk.VerifyBootSignature(); err != nil {
			return nil, err
		}
	}

	mem := memory.New(cfg.memSize)
	mem.Allocate(0, cfg.memSize)

	regs := cpuregs.NewState()
	regs.RIP = cfg.entry

	machine := executor.New(regs, mem)

	fb := video.New()
	keys := keyboard.New()
	biosHandler := &bios.Handler{
		Disk:   cfg.disk,
		Video:  fb,
		Keys:   keys,
		MaxRAM: cfg.maxRAM,
	}
	machine.BIOS = biosHandler

	ctx := &Context{
		Machine: machine,
		Disk:    cfg.disk,
		BIOS:    biosHandler,
		Video:   fb,
		Keys:    keys,
		Logger:  cfg.logger,
		Trace:   cfg.trace,
	}

	intr := interrupt.New()
	intr.HaltOnTripleFault = func(*executor.Machine) { ctx.tripleFaulted = true }
	machine.Intr = intr
	ctx.Intr = intr

	tickers := ticker.New()
	tickers.Add(ticker.NewPIT())
	tickers.Add(&ticker.DeviceTicker{Keys: keys})
	ctx.Tickers = tickers

	if cfg.disk != nil {
		if err := loadBootSector(mem, cfg.disk, cfg.entry); err != nil {
			return nil, err
		}
	}

	return ctx, nil
}

func loadBootSector(mem *memory.Memory, disk *boot.Stream, loadAddr uint64) error {
	data, err := disk.ReadSector(0, boot.SectorSize)
	if err != nil {
		return err
	}
	for i, b := range data {
		mem.PhysicalWrite(loadAddr+uint64(i), uint64(b), memory.W8)
	}
	return nil
}
