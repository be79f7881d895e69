package types

import (
	"github.com/shopspring/decimal"
)

// History is the append-only sequence of bars a strategy has seen so far.
// Lookups address bars by a non-positive offset from the newest one: 0 is
// the current bar, -1 the previous, -2 the one before that. Offsets greater
// than zero or reaching past the first bar report ok false.
type History struct {
	bars []Bar
}

func NewHistory(capacity int) *History {
	return &History{bars: make([]Bar, 0, capacity)}
}

func (h *History) Push(b Bar) {
	h.bars = append(h.bars, b)
}

func (h *History) Len() int {
	return len(h.bars)
}

func (h *History) Bar(offset int) (Bar, bool) {
	if offset > 0 {
		return Bar{}, false
	}
	i := len(h.bars) - 1 + offset
	if i < 0 {
		return Bar{}, false
	}
	return h.bars[i], true
}

func (h *History) Close(offset int) (decimal.Decimal, bool) {
	b, ok := h.Bar(offset)
	if !ok {
		return decimal.Decimal{}, false
	}
	return b.Close, true
}

// Last returns the newest bar, if any.
func (h *History) Last() (Bar, bool) {
	return h.Bar(0)
}
