package eventpubsub

import (
	"time"

	"github.com/google/uuid"

	"github.com/tradevane/tradevane/src/models"
)

// OrderFilled is published after a fill has been committed to the ledger.
type OrderFilled struct {
	UserID uuid.UUID
	Order  *models.SimOrder
	Trade  *models.Trade
}

// OrderRejected is published when matching or validation rejects an order.
type OrderRejected struct {
	UserID uuid.UUID
	Order  *models.SimOrder
	Reason string
}

// AccountReset is published after an account has been wiped to a fresh
// starting balance.
type AccountReset struct {
	UserID          uuid.UUID
	StartingBalance float64
}

// SnapshotSaved is published once a fill's market-context snapshot has been
// persisted.
type SnapshotSaved struct {
	UserID  uuid.UUID
	OrderID uuid.UUID
	Symbol  string
}

// EquitySampled is published each time a portfolio equity point is recorded.
type EquitySampled struct {
	UserID    uuid.UUID
	Equity    float64
	Timestamp time.Time
}
