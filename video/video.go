/*
 * x86boot - VGA text-mode framebuffer.
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

// Package video models the minimal VGA text-mode framebuffer the BIOS
// video service (INT 10h) writes through: an 80x25 grid of character
// cells, a cursor, and scrolling. Rendering the framebuffer to a
// terminal or a window is deliberately left to a Writer the caller
// supplies; this package ships none (a terminal-ANSI or windowed
// renderer is outside the core emulator).
package video

const (
	Columns = 80
	Rows    = 25

	defaultAttr = 0x07 // light gray on black, the BIOS power-up default
)

// Cell is one character-mode screen position.
type Cell struct {
	Char byte
	Attr byte
}

// Writer receives framebuffer updates for rendering. Implementations
// (terminal ANSI escapes, a windowed surface) live outside this
// package; Framebuffer works correctly with a nil Writer.
type Writer interface {
	Write(cells []Cell)
	SetCursor(row, col int)
	Clear()
	FlushIfNeeded()
}

// Framebuffer is the VGA text-mode screen state INT 10h operates on.
type Framebuffer struct {
	cells     [Rows][Columns]Cell
	cursorRow int
	cursorCol int
	attr      byte

	Writer Writer
}

// New returns a cleared 80x25 framebuffer.
func New() *Framebuffer {
	fb := &Framebuffer{attr: defaultAttr}
	fb.Clear()
	return fb
}

// Clear fills every cell with a blank, default-attribute character and
// homes the cursor, per INT 10h AH=00 (set mode).
func (fb *Framebuffer) Clear() {
	for r := 0; r < Rows; r++ {
		for c := 0; c < Columns; c++ {
			fb.cells[r][c] = Cell{Char: ' ', Attr: defaultAttr}
		}
	}
	fb.cursorRow, fb.cursorCol = 0, 0
	if fb.Writer != nil {
		fb.Writer.Clear()
	}
}

// SetCursor moves the cursor, per INT 10h AH=02.
func (fb *Framebuffer) SetCursor(row, col int) {
	fb.cursorRow = clamp(row, 0, Rows-1)
	fb.cursorCol = clamp(col, 0, Columns-1)
	if fb.Writer != nil {
		fb.Writer.SetCursor(fb.cursorRow, fb.cursorCol)
	}
}

// Cursor returns the current cursor position, per INT 10h AH=03.
func (fb *Framebuffer) Cursor() (row, col int) { return fb.cursorRow, fb.cursorCol }

// Teletype writes one character at the cursor with the given
// attribute and advances the cursor, per INT 10h AH=0E: CR/LF move the
// cursor without printing, and running off the last column or row
// wraps/scrolls exactly like a real teletype.
func (fb *Framebuffer) Teletype(ch byte, attr byte) {
	switch ch {
	case '\r':
		fb.cursorCol = 0
	case '\n':
		fb.advanceRow()
	case '\b':
		if fb.cursorCol > 0 {
			fb.cursorCol--
		}
	default:
		fb.cells[fb.cursorRow][fb.cursorCol] = Cell{Char: ch, Attr: attr}
		if fb.Writer != nil {
			fb.Writer.Write([]Cell{fb.cells[fb.cursorRow][fb.cursorCol]})
		}
		fb.cursorCol++
		if fb.cursorCol >= Columns {
			fb.cursorCol = 0
			fb.advanceRow()
		}
	}
	if fb.Writer != nil {
		fb.Writer.SetCursor(fb.cursorRow, fb.cursorCol)
	}
}

func (fb *Framebuffer) advanceRow() {
	fb.cursorRow++
	if fb.cursorRow >= Rows {
		fb.cursorRow = Rows - 1
		fb.ScrollUp(1, 0, Rows-1, defaultAttr)
	}
}

// ScrollUp shifts rows [top, bottom] up by n lines, blanking the
// bottom n lines with attr, per INT 10h AH=06.
func (fb *Framebuffer) ScrollUp(n, top, bottom int, attr byte) {
	if n <= 0 {
		n = Rows
	}
	for r := top; r <= bottom; r++ {
		src := r + n
		if src <= bottom {
			fb.cells[r] = fb.cells[src]
		} else {
			for c := 0; c < Columns; c++ {
				fb.cells[r][c] = Cell{Char: ' ', Attr: attr}
			}
		}
	}
	if fb.Writer != nil {
		fb.Writer.Write(fb.allCells())
	}
}

// ScrollDown shifts rows [top, bottom] down by n lines, blanking the
// top n lines with attr, per INT 10h AH=07.
func (fb *Framebuffer) ScrollDown(n, top, bottom int, attr byte) {
	if n <= 0 {
		n = Rows
	}
	for r := bottom; r >= top; r-- {
		src := r - n
		if src >= top {
			fb.cells[r] = fb.cells[src]
		} else {
			for c := 0; c < Columns; c++ {
				fb.cells[r][c] = Cell{Char: ' ', Attr: attr}
			}
		}
	}
	if fb.Writer != nil {
		fb.Writer.Write(fb.allCells())
	}
}

func (fb *Framebuffer) allCells() []Cell {
	out := make([]Cell, 0, Rows*Columns)
	for r := 0; r < Rows; r++ {
		out = append(out, fb.cells[r][:]...)
	}
	return out
}

// FlushIfNeeded asks the Writer to present accumulated updates. The
// runtime loop does not call it.
func (fb *Framebuffer) FlushIfNeeded() {
	if fb.Writer != nil {
		fb.Writer.FlushIfNeeded()
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
