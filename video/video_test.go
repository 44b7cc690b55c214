/*
 * x86boot - Framebuffer tests.
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

package video

import "testing"

func TestTeletypeAdvancesCursor(t *testing.T) {
	fb := New()
	fb.Teletype('H', 0x07)
	fb.Teletype('i', 0x07)
	row, col := fb.Cursor()
	if row != 0 || col != 2 {
		t.Fatalf("cursor = (%d,%d), want (0,2)", row, col)
	}
}

func TestTeletypeCRLF(t *testing.T) {
	fb := New()
	fb.SetCursor(0, 10)
	fb.Teletype('\r', 0x07)
	fb.Teletype('\n', 0x07)
	row, col := fb.Cursor()
	if row != 1 || col != 0 {
		t.Fatalf("cursor = (%d,%d), want (1,0)", row, col)
	}
}

func TestTeletypeWrapsAtColumn80(t *testing.T) {
	fb := New()
	fb.SetCursor(0, Columns-1)
	fb.Teletype('X', 0x07)
	row, col := fb.Cursor()
	if row != 1 || col != 0 {
		t.Fatalf("cursor = (%d,%d), want (1,0) after wrap", row, col)
	}
}

func TestScrollUpAtBottomRow(t *testing.T) {
	fb := New()
	fb.SetCursor(Rows-1, 0)
	fb.Teletype('\n', 0x07)
	row, _ := fb.Cursor()
	if row != Rows-1 {
		t.Fatalf("cursor row = %d, want %d (clamped, screen scrolled)", row, Rows-1)
	}
}

func TestSetCursorClamps(t *testing.T) {
	fb := New()
	fb.SetCursor(-1, 200)
	row, col := fb.Cursor()
	if row != 0 || col != Columns-1 {
		t.Fatalf("cursor = (%d,%d), want clamped to (0,%d)", row, col, Columns-1)
	}
}
