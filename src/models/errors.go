package models

import "fmt"

var (
	ErrInsufficientFunds    = fmt.Errorf("insufficient funds")
	ErrInsufficientPosition = fmt.Errorf("insufficient position: cannot sell more than held quantity")
	ErrInvalidOrderQuantity = fmt.Errorf("invalid order quantity: must be greater than zero")
	ErrInvalidDebitAmount   = fmt.Errorf("invalid debit amount: must be non-negative")
	ErrInvalidCreditAmount  = fmt.Errorf("invalid credit amount: must be non-negative")
	ErrOrderIsTerminal      = fmt.Errorf("order is terminal: no further transitions allowed")
	ErrOrderNotFound        = fmt.Errorf("order not found")
	ErrPriceUnavailable     = fmt.Errorf("price unavailable")
	ErrMissingLimitPrice    = fmt.Errorf("missing limit price")
	ErrMissingStopPrice     = fmt.Errorf("missing stop price")
	ErrSnapshotExists       = fmt.Errorf("snapshot already captured for order")
)
