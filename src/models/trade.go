package models

import (
	"time"

	"github.com/google/uuid"
)

const TradeSourceSandbox = "sandbox"

// Trade is the external-facing projection of a fill: one row per filled
// order, consumed by the analytics collaborators and never mutated by the
// engine after creation.
type Trade struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Source     string    `json:"source"`
	Symbol     string    `json:"symbol"`
	Side       OrderSide `json:"side"`
	Quantity   float64   `json:"qty"`
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
	Status     string    `json:"status"`
}

func NewTradeFromFill(order *SimOrder, userID uuid.UUID) *Trade {
	var entryTime time.Time
	if order.FilledAt != nil {
		entryTime = *order.FilledAt
	}

	return &Trade{
		ID:         order.ID,
		UserID:     userID,
		Source:     TradeSourceSandbox,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   order.Quantity,
		EntryPrice: order.FilledPrice,
		EntryTime:  entryTime,
		Status:     "open",
	}
}
