//go:build windows

package main

import (
	"os"

	"golang.org/x/sys/windows"
)

// enableVT turns on virtual terminal processing so the console interprets
// the ANSI sequences the table and alt screen are drawn with, and delivers
// arrow keys as escape sequences.
func enableVT() {
	for _, h := range []struct {
		f    *os.File
		mode uint32
	}{
		{os.Stdin, windows.ENABLE_VIRTUAL_TERMINAL_INPUT},
		{os.Stdout, windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING},
	} {
		handle := windows.Handle(h.f.Fd())
		var mode uint32
		if windows.GetConsoleMode(handle, &mode) == nil {
			windows.SetConsoleMode(handle, mode|h.mode)
		}
	}
}
