package terminal

import (
	"io"
	"os"
)

var (
	csiSGR0       = []byte("\x1b[0m")
	csiCursorShow = []byte("\x1b[?25h")
	// Bracketed paste and mouse reporting may have been enabled by the application
	csiPasteOff = []byte("\x1b[?2004l")
	csiMouseOff = []byte("\x1b[?1000l\x1b[?1002l\x1b[?1003l\x1b[?1006l")
)

// EmergencyReset attempts to restore terminal to sane state
// Call this from panic recovery if a source cannot be closed normally
func EmergencyReset(w io.Writer) {
	w.Write(csiMouseOff)
	w.Write(csiPasteOff)
	w.Write(csiCursorShow)
	w.Write(csiSGR0)

	if f, ok := w.(*os.File); ok {
		f.Sync()
	}

	// Escape sequences alone don't restore termios
	// Best-effort; errors ignored in crash context
	resetTerminalMode()
}
