package models

import (
	"math"
	"sort"
)

type Position struct {
	Symbol        string  `json:"symbol"`
	Quantity      float64 `json:"qty"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
}

// PositionBook tracks per-symbol quantity and weighted-average cost basis.
// A position whose quantity reaches zero is removed, never stored as zero.
type PositionBook struct {
	positions map[string]*Position
}

func NewPositionBook() *PositionBook {
	return &PositionBook{
		positions: make(map[string]*Position),
	}
}

func (b *PositionBook) Get(symbol string) (Position, bool) {
	pos, found := b.positions[symbol]
	if !found {
		return Position{}, false
	}

	return *pos, true
}

// HeldQuantity returns the quantity currently held for symbol, zero if flat.
func (b *PositionBook) HeldQuantity(symbol string) float64 {
	pos, found := b.positions[symbol]
	if !found {
		return 0
	}

	return pos.Quantity
}

// All returns a copy of the open positions sorted by symbol.
func (b *PositionBook) All() []Position {
	out := make([]Position, 0, len(b.positions))
	for _, pos := range b.positions {
		out = append(out, *pos)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Symbol < out[j].Symbol
	})

	return out
}

func (b *PositionBook) Len() int {
	return len(b.positions)
}

// ApplyFill applies a signed quantity delta at the given fill price.
//
// The average entry price is recomputed only when the fill moves the
// position further from zero in the same direction; a reducing fill leaves
// it unchanged, and a fill that lands exactly on zero removes the entry.
// Realized P&L on reducing fills is the caller's concern.
func (b *PositionBook) ApplyFill(symbol string, quantityDelta, fillPrice float64) {
	pos, found := b.positions[symbol]
	if !found {
		pos = &Position{Symbol: symbol}
		b.positions[symbol] = pos
	}

	newQuantity := pos.Quantity + quantityDelta

	if newQuantity == 0 {
		delete(b.positions, symbol)
		return
	}

	increasing := pos.Quantity == 0 || sameSign(pos.Quantity, quantityDelta)
	if increasing {
		pos.AvgEntryPrice = (pos.Quantity*pos.AvgEntryPrice + quantityDelta*fillPrice) / newQuantity
	}

	pos.Quantity = newQuantity
}

// Restore installs a persisted position, replacing any in-memory entry.
func (b *PositionBook) Restore(pos Position) {
	if pos.Quantity == 0 {
		delete(b.positions, pos.Symbol)
		return
	}

	p := pos
	b.positions[pos.Symbol] = &p
}

func (b *PositionBook) Clear() {
	b.positions = make(map[string]*Position)
}

func sameSign(a, b float64) bool {
	return math.Signbit(a) == math.Signbit(b)
}
