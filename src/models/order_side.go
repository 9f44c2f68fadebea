package models

import "fmt"

type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

func (s OrderSide) Validate() error {
	switch s {
	case OrderSideBuy, OrderSideSell:
		return nil
	default:
		return fmt.Errorf("OrderSide: invalid side: %s", s)
	}
}
