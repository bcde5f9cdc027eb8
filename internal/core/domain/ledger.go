package domain

import (
	"slices"

	"github.com/shopspring/decimal"
)

// A CartLine is a snapshot of a product taken at its first insertion
// into a ledger, plus the number of units held.
type CartLine struct {
	Product
	Quantity int
}

// Subtotal is Price * Quantity, unrounded.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// A Ledger is the cart state: lines keyed by product id in insertion order.
//
// Ledger is a value. Add and Remove return a new ledger and never modify
// the receiver's backing array.
type Ledger struct {
	Lines []CartLine
}

// Add increments the line of p.ID by one unit, or appends a new line with
// quantity 1 when p is not in the ledger. An existing line keeps the
// product snapshot captured when it was created.
func (l Ledger) Add(p Product) Ledger {
	lines := slices.Clone(l.Lines)
	if i := l.indexOf(p.ID); i >= 0 {
		lines[i].Quantity++
		return Ledger{Lines: lines}
	}
	lines = append(lines, CartLine{Product: p, Quantity: 1})
	return Ledger{Lines: lines}
}

// Remove deletes the whole line for id regardless of its quantity.
// Removing an absent id returns an equal ledger.
func (l Ledger) Remove(id int64) Ledger {
	if l.indexOf(id) < 0 {
		return l
	}
	lines := slices.DeleteFunc(slices.Clone(l.Lines), func(line CartLine) bool {
		return line.ID == id
	})
	return Ledger{Lines: lines}
}

func (l Ledger) Line(id int64) (CartLine, bool) {
	i := l.indexOf(id)
	if i < 0 {
		return CartLine{}, false
	}
	return l.Lines[i], true
}

// ItemCount is the sum of all line quantities.
func (l Ledger) ItemCount() int {
	var n int
	for _, line := range l.Lines {
		n += line.Quantity
	}
	return n
}

// Total is the sum of line subtotals in fixed-point arithmetic.
// Rounding for display is done by [FormatAmount].
func (l Ledger) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range l.Lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

func (l Ledger) IsEmpty() bool {
	return len(l.Lines) == 0
}

func (l Ledger) indexOf(id int64) int {
	return slices.IndexFunc(l.Lines, func(line CartLine) bool {
		return line.ID == id
	})
}
