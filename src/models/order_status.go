package models

import "fmt"

type OrderStatus string

const (
	OrderStatusNew      OrderStatus = "new"
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusRejected OrderStatus = "rejected"
)

func (s OrderStatus) Validate() error {
	switch s {
	case OrderStatusNew, OrderStatusFilled, OrderStatusRejected:
		return nil
	default:
		return fmt.Errorf("OrderStatus: invalid status: %s", s)
	}
}

// IsTerminal reports whether the status permits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFilled || s == OrderStatusRejected
}
