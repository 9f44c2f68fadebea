package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SimOrder is a simulated order. Its status moves new -> filled or
// new -> rejected; both are terminal.
type SimOrder struct {
	ID           uuid.UUID   `json:"id"`
	Symbol       string      `json:"symbol"`
	Side         OrderSide   `json:"side"`
	Quantity     float64     `json:"qty"`
	Type         OrderType   `json:"type"`
	TimeInForce  string      `json:"time_in_force"`
	LimitPrice   *float64    `json:"limit_price,omitempty"`
	StopPrice    *float64    `json:"stop_price,omitempty"`
	Status       OrderStatus `json:"status"`
	FilledPrice  float64     `json:"filled_avg_price"`
	FilledAt     *time.Time  `json:"filled_at,omitempty"`
	RejectReason *string     `json:"reject_reason,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

func NewSimOrder(id uuid.UUID, symbol string, side OrderSide, quantity float64, orderType OrderType, timeInForce string, limitPrice, stopPrice *float64, createdAt time.Time) *SimOrder {
	return &SimOrder{
		ID:          id,
		Symbol:      symbol,
		Side:        side,
		Quantity:    quantity,
		Type:        orderType,
		TimeInForce: timeInForce,
		LimitPrice:  limitPrice,
		StopPrice:   stopPrice,
		Status:      OrderStatusNew,
		CreatedAt:   createdAt,
	}
}

// Fill transitions the order to filled. Only valid from status new.
func (o *SimOrder) Fill(price float64, at time.Time) error {
	if o.Status.IsTerminal() {
		return ErrOrderIsTerminal
	}

	if price <= 0 {
		return fmt.Errorf("SimOrder.Fill: fill price must be greater than 0, got %.4f", price)
	}

	o.Status = OrderStatusFilled
	o.FilledPrice = price
	o.FilledAt = &at

	return nil
}

// Reject transitions the order to rejected. Only valid from status new.
func (o *SimOrder) Reject(reason error) error {
	if o.Status.IsTerminal() {
		return ErrOrderIsTerminal
	}

	o.Status = OrderStatusRejected
	if reason != nil {
		msg := reason.Error()
		o.RejectReason = &msg
	}

	return nil
}

func (o *SimOrder) IsPending() bool {
	return o.Status == OrderStatusNew
}

// SignedQuantity returns the quantity with buy positive and sell negative.
func (o *SimOrder) SignedQuantity() float64 {
	if o.Side == OrderSideSell {
		return -o.Quantity
	}

	return o.Quantity
}
