package input

import (
	"strconv"
	"strings"
)

// Modifier is the set of flags detected for one chunk
type Modifier uint16

const (
	ModNone Modifier = 0

	// Named keys; a chunk matches at most one
	ModUpArrow Modifier = 1 << (iota - 1)
	ModDownArrow
	ModLeftArrow
	ModRightArrow
	ModReturn
	ModEscape

	// Qualifiers
	ModCtrl
	ModShift
	ModMeta
)

// modNamedKeys masks the mutually exclusive named-key flags
const modNamedKeys = ModUpArrow | ModDownArrow | ModLeftArrow | ModRightArrow | ModReturn | ModEscape

// modNames lists flags in String order
var modNames = []struct {
	mod  Modifier
	name string
}{
	{ModCtrl, "ctrl"},
	{ModMeta, "meta"},
	{ModShift, "shift"},
	{ModUpArrow, "up"},
	{ModDownArrow, "down"},
	{ModLeftArrow, "left"},
	{ModRightArrow, "right"},
	{ModReturn, "return"},
	{ModEscape, "escape"},
}

// Has reports whether all flags in mod are set
func (m Modifier) Has(mod Modifier) bool {
	return m&mod == mod
}

// String returns flag names joined with "+", e.g. "ctrl+meta"
func (m Modifier) String() string {
	if m == ModNone {
		return ""
	}
	var parts []string
	for _, n := range modNames {
		if m&n.mod != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "+")
}

// KeyEvent is the decoded form of one input chunk
type KeyEvent struct {
	// Text is the residual payload after control and meta stripping.
	// Empty for recognized named-key sequences.
	Text string
	Mods Modifier
}

func (e KeyEvent) UpArrow() bool    { return e.Mods.Has(ModUpArrow) }
func (e KeyEvent) DownArrow() bool  { return e.Mods.Has(ModDownArrow) }
func (e KeyEvent) LeftArrow() bool  { return e.Mods.Has(ModLeftArrow) }
func (e KeyEvent) RightArrow() bool { return e.Mods.Has(ModRightArrow) }
func (e KeyEvent) Return() bool     { return e.Mods.Has(ModReturn) }
func (e KeyEvent) Escape() bool     { return e.Mods.Has(ModEscape) }
func (e KeyEvent) Ctrl() bool       { return e.Mods.Has(ModCtrl) }
func (e KeyEvent) Shift() bool      { return e.Mods.Has(ModShift) }
func (e KeyEvent) Meta() bool       { return e.Mods.Has(ModMeta) }

// String formats the event as flags followed by the quoted text, e.g. `ctrl "a"`
func (e KeyEvent) String() string {
	mods := e.Mods.String()
	if e.Text == "" {
		if mods == "" {
			return `""`
		}
		return mods
	}
	if mods == "" {
		return strconv.Quote(e.Text)
	}
	return mods + " " + strconv.Quote(e.Text)
}
