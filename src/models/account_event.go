package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AccountEventType string

const (
	AccountEventReset          AccountEventType = "account_reset"
	AccountEventOrderSubmitted AccountEventType = "order_submitted"
	AccountEventOrderFilled    AccountEventType = "order_filled"
	AccountEventOrderRejected  AccountEventType = "order_rejected"
	AccountEventCashDebited    AccountEventType = "cash_debited"
	AccountEventCashCredited   AccountEventType = "cash_credited"
)

// AccountEvent is one entry of the append-only account ledger. The event log
// is written in the same transaction as the state projection and can replay
// the full cash/position history of an account.
type AccountEvent struct {
	Type      AccountEventType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	OrderID   uuid.UUID        `json:"order_id,omitempty"`
	Symbol    string           `json:"symbol,omitempty"`
	Quantity  float64          `json:"qty,omitempty"`
	Price     float64          `json:"price,omitempty"`
	Amount    float64          `json:"amount,omitempty"`
}

func NewResetEvent(balance float64, at time.Time) AccountEvent {
	return AccountEvent{Type: AccountEventReset, Timestamp: at, Amount: balance}
}

func NewOrderSubmittedEvent(order *SimOrder) AccountEvent {
	return AccountEvent{
		Type:      AccountEventOrderSubmitted,
		Timestamp: order.CreatedAt,
		OrderID:   order.ID,
		Symbol:    order.Symbol,
		Quantity:  order.SignedQuantity(),
	}
}

func NewOrderFilledEvent(order *SimOrder) AccountEvent {
	var at time.Time
	if order.FilledAt != nil {
		at = *order.FilledAt
	}

	return AccountEvent{
		Type:      AccountEventOrderFilled,
		Timestamp: at,
		OrderID:   order.ID,
		Symbol:    order.Symbol,
		Quantity:  order.SignedQuantity(),
		Price:     order.FilledPrice,
	}
}

func NewOrderRejectedEvent(order *SimOrder, at time.Time) AccountEvent {
	return AccountEvent{
		Type:      AccountEventOrderRejected,
		Timestamp: at,
		OrderID:   order.ID,
		Symbol:    order.Symbol,
		Quantity:  order.SignedQuantity(),
	}
}

func NewCashDebitedEvent(amount float64, orderID uuid.UUID, at time.Time) AccountEvent {
	return AccountEvent{Type: AccountEventCashDebited, Timestamp: at, OrderID: orderID, Amount: amount}
}

func NewCashCreditedEvent(amount float64, orderID uuid.UUID, at time.Time) AccountEvent {
	return AccountEvent{Type: AccountEventCashCredited, Timestamp: at, OrderID: orderID, Amount: amount}
}

// ReplayAccountEvents folds an event log back into cash and positions. The
// log must open with an account_reset event; replayed state must match the
// persisted projection, which makes the log usable for audit and recovery.
func ReplayAccountEvents(events []AccountEvent) (float64, *PositionBook, error) {
	if len(events) == 0 {
		return 0, nil, fmt.Errorf("ReplayAccountEvents: empty event log")
	}

	if events[0].Type != AccountEventReset {
		return 0, nil, fmt.Errorf("ReplayAccountEvents: log must start with %s, got %s", AccountEventReset, events[0].Type)
	}

	var cash float64
	book := NewPositionBook()

	for _, event := range events {
		switch event.Type {
		case AccountEventReset:
			cash = event.Amount
			book.Clear()
		case AccountEventCashDebited:
			cash -= event.Amount
		case AccountEventCashCredited:
			cash += event.Amount
		case AccountEventOrderFilled:
			book.ApplyFill(event.Symbol, event.Quantity, event.Price)
		case AccountEventOrderSubmitted, AccountEventOrderRejected:
			// no state effect
		default:
			return 0, nil, fmt.Errorf("ReplayAccountEvents: unknown event type: %s", event.Type)
		}
	}

	return cash, book, nil
}
