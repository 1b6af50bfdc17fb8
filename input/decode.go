package input

import "unicode/utf8"

const (
	keyEscape   = 0x1b
	keyReturn   = '\r'
	ctrlMaxByte = 0x1a // Ctrl+Z
)

// namedSequences maps whole chunks to named keys.
// A chunk equal to one of these is that key and nothing else.
var namedSequences = map[string]Modifier{
	"\x1b[A": ModUpArrow,
	"\x1b[B": ModDownArrow,
	"\x1b[D": ModLeftArrow,
	"\x1b[C": ModRightArrow,
	"\r":     ModReturn,
}

// Decode classifies one raw chunk. It is total: unrecognized input is returned
// as literal text with no flags.
//
// Order is fixed:
//  1. exact named sequences (arrows, return) consume the whole chunk
//  2. a lone ESC marks Escape and continues
//  3. a single control byte 0x00-0x1A other than '\r' and ESC becomes Ctrl+letter
//  4. a leading ESC is stripped and marks Meta, so a lone ESC is Escape+Meta
//  5. a lone uppercase Latin or Cyrillic letter marks Shift
func Decode(chunk []byte) KeyEvent {
	// The string([]byte) conversion in a map index does not allocate
	if mod, ok := namedSequences[string(chunk)]; ok {
		return KeyEvent{Mods: mod}
	}

	text := string(chunk)
	var mods Modifier

	if len(chunk) == 1 && chunk[0] == keyEscape {
		mods |= ModEscape
	}

	if len(chunk) == 1 && chunk[0] <= ctrlMaxByte && chunk[0] != keyReturn {
		// 0x01 -> 'a' ... 0x1a -> 'z'
		text = string(rune('a' + int(chunk[0]) - 1))
		mods |= ModCtrl
	}

	if len(text) > 0 && text[0] == keyEscape {
		text = text[1:]
		mods |= ModMeta
	}

	if isSingleUpper(text) {
		mods |= ModShift
	}

	return KeyEvent{Text: text, Mods: mods}
}

// DecodeString is Decode for chunks already held as a string
func DecodeString(chunk string) KeyEvent {
	return Decode([]byte(chunk))
}

// isSingleUpper reports whether s is exactly one rune in A-Z or А-Я
func isSingleUpper(s string) bool {
	if s == "" {
		return false
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) {
		return false
	}
	return (r >= 'A' && r <= 'Z') || (r >= 'А' && r <= 'Я')
}
