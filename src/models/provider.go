package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TradingProvider is the contract shared by the local simulation engine and
// the live-broker adapter. An implementation is scoped to a single logical
// account; the rest of the application never sees which side it talks to.
type TradingProvider interface {
	GetAccount(ctx context.Context) (*AccountDetail, error)
	GetPositions(ctx context.Context) ([]*PositionDetail, error)
	ListOrders(ctx context.Context, status string, limit int) ([]*SimOrder, error)
	SubmitOrder(ctx context.Context, req *SubmitOrderRequest) (*SimOrder, error)
	GetPortfolioHistory(ctx context.Context, period, timeframe string) ([]*PortfolioPoint, error)
	GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)
	GetTradeSnapshot(ctx context.Context, orderID uuid.UUID) (*Snapshot, error)
	ResetAccount(ctx context.Context, balance float64) error
}

type AccountDetail struct {
	Status         string  `json:"status"`
	Cash           float64 `json:"cash"`
	BuyingPower    float64 `json:"buying_power"`
	PortfolioValue float64 `json:"portfolio_value"`
	Equity         float64 `json:"equity"`
	Currency       string  `json:"currency"`
	DaytradeCount  int     `json:"daytrade_count"`
}

type PositionDetail struct {
	Symbol         string  `json:"symbol"`
	Quantity       float64 `json:"qty"`
	Side           string  `json:"side"`
	MarketValue    float64 `json:"market_value"`
	AvgEntryPrice  float64 `json:"avg_entry_price"`
	CurrentPrice   float64 `json:"current_price"`
	UnrealizedPL   float64 `json:"unrealized_pl"`
	UnrealizedPLPC float64 `json:"unrealized_plpc"`
}

type PortfolioPoint struct {
	Time          time.Time `json:"time"`
	Equity        float64   `json:"equity"`
	ProfitLoss    float64   `json:"profit_loss"`
	ProfitLossPct float64   `json:"profit_loss_pct"`
}

type SubmitOrderRequest struct {
	Symbol      string    `json:"symbol"`
	Quantity    float64   `json:"qty"`
	Side        OrderSide `json:"side"`
	Type        OrderType `json:"type"`
	TimeInForce string    `json:"time_in_force"`
	LimitPrice  *float64  `json:"limit_price,omitempty"`
	StopPrice   *float64  `json:"stop_price,omitempty"`
}

// Validate rejects malformed requests before they reach the matching engine;
// a request that fails validation must never mutate state.
func (r *SubmitOrderRequest) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("SubmitOrderRequest: missing symbol")
	}

	if r.Quantity <= 0 {
		return ErrInvalidOrderQuantity
	}

	if err := r.Side.Validate(); err != nil {
		return err
	}

	if err := r.Type.Validate(); err != nil {
		return err
	}

	if r.Type.RequiresLimitPrice() && r.LimitPrice == nil {
		return ErrMissingLimitPrice
	}

	if r.Type.RequiresStopPrice() && r.StopPrice == nil {
		return ErrMissingStopPrice
	}

	return nil
}
