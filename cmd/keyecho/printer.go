package main

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/lixenwraith/rawkey/input"
	"github.com/lixenwraith/rawkey/measure"
)

const textColumn = 18

// printer writes event lines with \r\n endings for raw mode
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) banner(active bool) {
	p.line("keyecho - Ctrl+T pause/resume, Ctrl+C quit")
	p.line(measure.PadRight("TEXT", textColumn) + "FLAGS")
	if !active {
		p.line("(echo paused)")
	}
}

func (p *printer) event(text string, ev input.KeyEvent) {
	flags := ev.Mods.String()
	if flags == "" {
		flags = "-"
	}
	p.line(measure.PadRight(strconv.QuoteToGraphic(text), textColumn) + flags)
}

func (p *printer) status(active bool) {
	if active {
		p.line("(echo resumed)")
		return
	}
	p.line("(echo paused)")
}

func (p *printer) line(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s\r\n", s)
}
