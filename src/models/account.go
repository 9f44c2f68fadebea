package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is the cash ledger for one simulated trading account. All
// mutations happen through Debit/Credit/Reset so cash can never go negative.
type Account struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	StartingBalance  float64
	MarginMultiplier float64
	CreatedAt        time.Time

	balance float64
}

func NewAccount(userID uuid.UUID, balance, marginMultiplier float64, createdAt time.Time) *Account {
	return &Account{
		ID:               uuid.New(),
		UserID:           userID,
		StartingBalance:  balance,
		MarginMultiplier: marginMultiplier,
		CreatedAt:        createdAt,
		balance:          balance,
	}
}

func (a *Account) Cash() float64 {
	return a.balance
}

func (a *Account) BuyingPower() float64 {
	return a.balance * a.MarginMultiplier
}

// Debit removes cash from the account. Fails with ErrInsufficientFunds when
// the amount exceeds free cash; the balance is untouched on failure.
func (a *Account) Debit(amount float64) error {
	if amount < 0 {
		return ErrInvalidDebitAmount
	}

	if amount > a.balance {
		return ErrInsufficientFunds
	}

	a.balance -= amount

	return nil
}

func (a *Account) Credit(amount float64) error {
	if amount < 0 {
		return ErrInvalidCreditAmount
	}

	a.balance += amount

	return nil
}

// Reset sets starting and current balance to the given value. This is the
// only way to destroy account history and is always caller-invoked.
func (a *Account) Reset(balance float64) {
	a.StartingBalance = balance
	a.balance = balance
}

// RestoreBalance sets the current balance directly. Used when rehydrating an
// account from persisted state, never from trading logic.
func (a *Account) RestoreBalance(balance float64) {
	a.balance = balance
}
