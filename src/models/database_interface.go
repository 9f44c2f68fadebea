package models

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AccountState is the full in-memory state of one logical account. The
// engine owns it exclusively; IDatabaseService is the only path that makes
// it durable.
type AccountState struct {
	Account   *Account
	Positions *PositionBook
	Orders    []*SimOrder
}

type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
}

type IDatabaseService interface {
	// LoadAccount returns the persisted state for a user, or found=false
	// when no account exists yet.
	LoadAccount(ctx context.Context, userID uuid.UUID) (*AccountState, bool, error)

	// SaveAccount synchronizes the full account state and appends the given
	// events to the account's event log in a single transaction.
	SaveAccount(ctx context.Context, state *AccountState, events []AccountEvent) error

	// SaveTrade persists the trade projection of a fill together with its
	// market-context snapshot.
	SaveTrade(ctx context.Context, trade *Trade, snapshot *Snapshot) error

	LoadSnapshot(ctx context.Context, orderID uuid.UUID) (*Snapshot, bool, error)

	SaveEquityPoint(ctx context.Context, accountID uuid.UUID, timestamp time.Time, equity float64) error
	LoadEquityHistory(ctx context.Context, accountID uuid.UUID, from time.Time) ([]EquityPoint, error)

	LoadEvents(ctx context.Context, accountID uuid.UUID) ([]AccountEvent, error)
}
