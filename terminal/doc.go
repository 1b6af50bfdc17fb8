// Package terminal provides raw byte sources for terminal input.
//
// Features:
//   - ByteSource abstraction: chunk listeners plus an idempotent raw-mode switch
//   - SharedRawMode: acquire/release counting so independent owners share raw mode
//   - StdinSource: stdin (or any file) read with unix.Poll, raw mode via x/term
//   - TtySource: the controlling terminal through tcell.Tty
//   - Clean terminal restoration on close and on listener panic
//
// Sources never interpret bytes. Each chunk read from the device is handed to
// every listener unchanged, in read order, from a single reader goroutine.
// Target environments: Linux, macOS, BSDs with xterm-compatible terminals.
package terminal
