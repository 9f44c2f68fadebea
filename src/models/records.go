package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AccountRecord struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID           uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_sim_accounts_user_id"`
	StartingBalance  float64   `gorm:"column:starting_balance;type:numeric;not null"`
	CurrentBalance   float64   `gorm:"column:current_balance;type:numeric;not null"`
	MarginMultiplier float64   `gorm:"column:margin_multiplier;type:numeric;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;type:timestamptz;not null"`
}

func (AccountRecord) TableName() string {
	return "sim_accounts"
}

type PositionRecord struct {
	gorm.Model
	AccountID     uuid.UUID `gorm:"column:account_id;type:uuid;not null;index:idx_sim_positions_account_id"`
	Symbol        string    `gorm:"column:symbol;type:text;not null"`
	Quantity      float64   `gorm:"column:qty;type:numeric;not null"`
	AvgEntryPrice float64   `gorm:"column:avg_entry_price;type:numeric;not null"`
}

func (PositionRecord) TableName() string {
	return "sim_positions"
}

type OrderRecord struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	AccountID    uuid.UUID  `gorm:"column:account_id;type:uuid;not null;index:idx_sim_orders_account_id"`
	Symbol       string     `gorm:"column:symbol;type:text;not null"`
	Side         string     `gorm:"column:side;type:text;not null"`
	Quantity     float64    `gorm:"column:qty;type:numeric;not null"`
	OrderType    string     `gorm:"column:order_type;type:text;not null"`
	TimeInForce  string     `gorm:"column:time_in_force;type:text;not null"`
	LimitPrice   *float64   `gorm:"column:limit_price;type:numeric"`
	StopPrice    *float64   `gorm:"column:stop_price;type:numeric"`
	Status       string     `gorm:"column:status;type:text;not null"`
	FilledPrice  *float64   `gorm:"column:filled_price;type:numeric"`
	FilledAt     *time.Time `gorm:"column:filled_at;type:timestamptz"`
	RejectReason *string    `gorm:"column:reject_reason;type:text"`
	CreatedAt    time.Time  `gorm:"column:created_at;type:timestamptz;not null"`
}

func (OrderRecord) TableName() string {
	return "sim_orders"
}

type TradeRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;not null;index:idx_trades_user_id"`
	Source     string    `gorm:"column:source;type:text;not null"`
	Symbol     string    `gorm:"column:symbol;type:text;not null;index:idx_trades_symbol"`
	Side       string    `gorm:"column:side;type:text;not null"`
	Quantity   float64   `gorm:"column:qty;type:numeric;not null"`
	EntryPrice float64   `gorm:"column:entry_price;type:numeric;not null"`
	EntryTime  time.Time `gorm:"column:entry_time;type:timestamptz;not null"`
	Status     string    `gorm:"column:status;type:text;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz"`
}

func (TradeRecord) TableName() string {
	return "trades"
}

type SnapshotRecord struct {
	gorm.Model
	OrderID    uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex:idx_trade_snapshots_order_id"`
	Symbol     string    `gorm:"column:symbol;type:text;not null"`
	FillPrice  float64   `gorm:"column:fill_price;type:numeric;not null"`
	Timestamp  time.Time `gorm:"column:timestamp;type:timestamptz;not null"`
	Bars       []byte    `gorm:"column:ohlcv_data;type:jsonb"`
	Indicators []byte    `gorm:"column:technical_indicators;type:jsonb"`
	Headlines  []byte    `gorm:"column:news_headlines;type:jsonb"`
}

func (SnapshotRecord) TableName() string {
	return "trade_snapshots"
}

type EquityPlotRecord struct {
	gorm.Model
	AccountID uuid.UUID `gorm:"column:account_id;type:uuid;not null;index:idx_equity_plot_account_id"`
	Timestamp time.Time `gorm:"column:timestamp;type:timestamptz;not null"`
	Equity    float64   `gorm:"column:equity;type:numeric;not null"`
}

func (EquityPlotRecord) TableName() string {
	return "equity_plot_records"
}

type AccountEventRecord struct {
	ID        uint       `gorm:"primaryKey;autoIncrement"`
	AccountID uuid.UUID  `gorm:"column:account_id;type:uuid;not null;index:idx_sim_account_events_account_id"`
	EventType string     `gorm:"column:event_type;type:text;not null"`
	OrderID   *uuid.UUID `gorm:"column:order_id;type:uuid"`
	Symbol    string     `gorm:"column:symbol;type:text"`
	Quantity  float64    `gorm:"column:qty;type:numeric"`
	Price     float64    `gorm:"column:price;type:numeric"`
	Amount    float64    `gorm:"column:amount;type:numeric"`
	Timestamp time.Time  `gorm:"column:timestamp;type:timestamptz;not null"`
}

func (AccountEventRecord) TableName() string {
	return "sim_account_events"
}

func (a *Account) ToRecord() *AccountRecord {
	return &AccountRecord{
		ID:               a.ID,
		UserID:           a.UserID,
		StartingBalance:  a.StartingBalance,
		CurrentBalance:   a.Cash(),
		MarginMultiplier: a.MarginMultiplier,
		CreatedAt:        a.CreatedAt,
	}
}

func (r *AccountRecord) ToAccount() *Account {
	account := &Account{
		ID:               r.ID,
		UserID:           r.UserID,
		StartingBalance:  r.StartingBalance,
		MarginMultiplier: r.MarginMultiplier,
		CreatedAt:        r.CreatedAt,
	}
	account.RestoreBalance(r.CurrentBalance)

	return account
}

func (o *SimOrder) ToRecord(accountID uuid.UUID) *OrderRecord {
	record := &OrderRecord{
		ID:           o.ID,
		AccountID:    accountID,
		Symbol:       o.Symbol,
		Side:         string(o.Side),
		Quantity:     o.Quantity,
		OrderType:    string(o.Type),
		TimeInForce:  o.TimeInForce,
		LimitPrice:   o.LimitPrice,
		StopPrice:    o.StopPrice,
		Status:       string(o.Status),
		FilledAt:     o.FilledAt,
		RejectReason: o.RejectReason,
		CreatedAt:    o.CreatedAt,
	}

	if o.Status == OrderStatusFilled {
		filledPrice := o.FilledPrice
		record.FilledPrice = &filledPrice
	}

	return record
}

func (r *OrderRecord) ToSimOrder() *SimOrder {
	order := &SimOrder{
		ID:           r.ID,
		Symbol:       r.Symbol,
		Side:         OrderSide(r.Side),
		Quantity:     r.Quantity,
		Type:         OrderType(r.OrderType),
		TimeInForce:  r.TimeInForce,
		LimitPrice:   r.LimitPrice,
		StopPrice:    r.StopPrice,
		Status:       OrderStatus(r.Status),
		FilledAt:     r.FilledAt,
		RejectReason: r.RejectReason,
		CreatedAt:    r.CreatedAt,
	}

	if r.FilledPrice != nil {
		order.FilledPrice = *r.FilledPrice
	}

	return order
}

func (t *Trade) ToRecord() *TradeRecord {
	return &TradeRecord{
		ID:         t.ID,
		UserID:     t.UserID,
		Source:     t.Source,
		Symbol:     t.Symbol,
		Side:       string(t.Side),
		Quantity:   t.Quantity,
		EntryPrice: t.EntryPrice,
		EntryTime:  t.EntryTime,
		Status:     t.Status,
	}
}

func (s *Snapshot) ToRecord() (*SnapshotRecord, error) {
	bars, err := json.Marshal(s.Bars)
	if err != nil {
		return nil, fmt.Errorf("Snapshot.ToRecord: marshal bars: %w", err)
	}

	indicators, err := json.Marshal(s.Indicators)
	if err != nil {
		return nil, fmt.Errorf("Snapshot.ToRecord: marshal indicators: %w", err)
	}

	headlines, err := json.Marshal(s.Headlines)
	if err != nil {
		return nil, fmt.Errorf("Snapshot.ToRecord: marshal headlines: %w", err)
	}

	return &SnapshotRecord{
		OrderID:    s.OrderID,
		Symbol:     s.Symbol,
		FillPrice:  s.FillPrice,
		Timestamp:  s.Timestamp,
		Bars:       bars,
		Indicators: indicators,
		Headlines:  headlines,
	}, nil
}

func (r *SnapshotRecord) ToSnapshot() (*Snapshot, error) {
	snapshot := &Snapshot{
		OrderID:   r.OrderID,
		Symbol:    r.Symbol,
		FillPrice: r.FillPrice,
		Timestamp: r.Timestamp,
	}

	if len(r.Bars) > 0 {
		if err := json.Unmarshal(r.Bars, &snapshot.Bars); err != nil {
			return nil, fmt.Errorf("SnapshotRecord.ToSnapshot: unmarshal bars: %w", err)
		}
	}

	if len(r.Indicators) > 0 {
		if err := json.Unmarshal(r.Indicators, &snapshot.Indicators); err != nil {
			return nil, fmt.Errorf("SnapshotRecord.ToSnapshot: unmarshal indicators: %w", err)
		}
	}

	if len(r.Headlines) > 0 {
		if err := json.Unmarshal(r.Headlines, &snapshot.Headlines); err != nil {
			return nil, fmt.Errorf("SnapshotRecord.ToSnapshot: unmarshal headlines: %w", err)
		}
	}

	return snapshot, nil
}

func (e AccountEvent) ToRecord(accountID uuid.UUID) *AccountEventRecord {
	record := &AccountEventRecord{
		AccountID: accountID,
		EventType: string(e.Type),
		Symbol:    e.Symbol,
		Quantity:  e.Quantity,
		Price:     e.Price,
		Amount:    e.Amount,
		Timestamp: e.Timestamp,
	}

	if e.OrderID != uuid.Nil {
		orderID := e.OrderID
		record.OrderID = &orderID
	}

	return record
}

func (r *AccountEventRecord) ToAccountEvent() AccountEvent {
	event := AccountEvent{
		Type:      AccountEventType(r.EventType),
		Timestamp: r.Timestamp,
		Symbol:    r.Symbol,
		Quantity:  r.Quantity,
		Price:     r.Price,
		Amount:    r.Amount,
	}

	if r.OrderID != nil {
		event.OrderID = *r.OrderID
	}

	return event
}
