/*
 * x86boot - Monitor console reader.
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

package monitor

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/peterh/liner"
)

// ConsoleReader drives c from a liner-backed prompt until a "quit"
// command or the line reader itself reports EOF/Ctrl-D, the same
// read-dispatch-print loop the teacher's command/reader.ConsoleReader
// runs over its core.Core, adapted from the mainframe's device
// command set to this package's step/continue/regs/mem/break set.
func ConsoleReader(c *Console) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(partial string) []string {
		return completeCmd(partial)
	})

	for {
		input, err := line.Prompt("x86boot> ")
		if err == nil {
			line.AppendHistory(input)
			out, cmdErr := ProcessCommand(input, c)
			if cmdErr != nil {
				fmt.Println("error: " + cmdErr.Error())
			} else if out != "" {
				fmt.Println(out)
			}
			if c.Quit {
				return
			}
			continue
		}

		if errors.Is(err, liner.ErrPromptAborted) {
			return
		}
		slog.Error("monitor: error reading line: " + err.Error())
		return
	}
}

// completeCmd offers the matching command names for tab-completion,
// mirroring command/parser.CompleteCmd's top-level completion (this
// package has no per-command argument completer, since its arguments
// are addresses and counts rather than the mainframe's device/option
// vocabulary).
func completeCmd(partial string) []string {
	var names []string
	for _, m := range cmdList {
		if len(partial) <= len(m.name) && m.name[:len(partial)] == partial {
			names = append(names, m.name)
		}
	}
	return names
}
