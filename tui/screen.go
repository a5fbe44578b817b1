package tui

import (
	"fmt"
	"io"

	tm "github.com/buger/goterm"
)

// Redraw replaces the terminal contents with frame. Without a terminal the
// frame is appended instead, so piped watch output keeps every refresh.
func Redraw(w io.Writer, frame string) {
	if HasTTY {
		tm.Clear()
		tm.MoveCursor(1, 1)
		tm.Flush()
	}
	fmt.Fprintln(w, frame)
}
