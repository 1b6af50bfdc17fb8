package measure

import (
	"math"
	"testing"
)

type fixedNode float64

func (n fixedNode) ComputedWidth() float64 { return float64(n) }

type element struct {
	node LayoutNode
}

func (e element) LayoutNode() LayoutNode { return e.node }

type ptrElement struct {
	node LayoutNode
}

func (e *ptrElement) LayoutNode() LayoutNode { return e.node }

type ptrNode struct {
	w float64
}

func (n *ptrNode) ComputedWidth() float64 { return n.w }

func TestWidth(t *testing.T) {
	tests := []struct {
		name string
		el   Element
		want int
	}{
		{"nil element", nil, 0},
		{"no layout node", element{}, 0},
		{"integer width", element{fixedNode(42)}, 42},
		{"fractional width truncates", element{fixedNode(10.9)}, 10},
		{"zero", element{fixedNode(0)}, 0},
		{"negative", element{fixedNode(-3)}, 0},
		{"nan", element{fixedNode(math.NaN())}, 0},
		{"positive infinity", element{fixedNode(math.Inf(1))}, math.MaxInt},
		{"negative infinity", element{fixedNode(math.Inf(-1))}, 0},
		{"beyond int range", element{fixedNode(1e300)}, math.MaxInt},
		{"at int range", element{fixedNode(float64(math.MaxInt))}, math.MaxInt},
		{"typed nil element", (*ptrElement)(nil), 0},
		{"typed nil node", element{(*ptrNode)(nil)}, 0},
		{"pointer element", &ptrElement{&ptrNode{7}}, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Width(tt.el); got != tt.want {
				t.Errorf("Width() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTextWidth(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abc", 3},
		{"日本", 4},
		{"ab\nabcd\nx", 4},
	}

	for _, tt := range tests {
		if got := Width(Text(tt.text)); got != tt.want {
			t.Errorf("Width(Text(%q)) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestPadRight(t *testing.T) {
	if got := PadRight("ab", 5); got != "ab   " {
		t.Errorf("PadRight = %q", got)
	}
	if got := PadRight("日本", 5); got != "日本 " {
		t.Errorf("PadRight wide = %q", got)
	}
	if got := PadRight("abcdef", 3); got != "abcdef" {
		t.Errorf("PadRight overflow = %q", got)
	}
}
