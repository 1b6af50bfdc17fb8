// Package measure reads computed element widths from a layout engine.
package measure

import (
	"math"
	"reflect"
	"strings"

	"github.com/mattn/go-runewidth"
)

// LayoutNode is the layout engine's view of an element
type LayoutNode interface {
	ComputedWidth() float64
}

// Element is anything that may carry a layout node
type Element interface {
	// LayoutNode returns nil before layout has run
	LayoutNode() LayoutNode
}

// Width returns the computed width of el in cells.
// Missing elements, missing nodes, NaN and negative widths measure 0.
// Widths beyond the int range clamp to math.MaxInt.
func Width(el Element) int {
	if isNil(el) {
		return 0
	}
	node := el.LayoutNode()
	if isNil(node) {
		return 0
	}
	w := node.ComputedWidth()
	if math.IsNaN(w) || w <= 0 {
		return 0
	}
	// float64(math.MaxInt) rounds up to 2^63, which int cannot hold
	if w >= float64(math.MaxInt) {
		return math.MaxInt
	}
	return int(w)
}

// isNil also catches nil pointers stored in an interface
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// Text is a self-laid-out element: its width is the widest line in display cells
type Text string

// LayoutNode implements Element
func (t Text) LayoutNode() LayoutNode {
	return t
}

// ComputedWidth implements LayoutNode
func (t Text) ComputedWidth() float64 {
	widest := 0
	for _, line := range strings.Split(string(t), "\n") {
		if w := runewidth.StringWidth(line); w > widest {
			widest = w
		}
	}
	return float64(widest)
}

// PadRight pads s with spaces to width cells
func PadRight(s string, width int) string {
	w := Width(Text(s))
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}
