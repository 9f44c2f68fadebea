package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tradevane/tradevane/src/eventpubsub"
	"github.com/tradevane/tradevane/src/models"
	"github.com/tradevane/tradevane/src/oracle"
	"github.com/tradevane/tradevane/src/utils"
)

// AccountClient is the engine's models.TradingProvider implementation,
// scoped to a single user's simulated account.
type AccountClient struct {
	engine *Engine
	userID uuid.UUID
}

var _ models.TradingProvider = (*AccountClient)(nil)

func (c *AccountClient) GetAccount(ctx context.Context) (*models.AccountDetail, error) {
	var detail *models.AccountDetail

	err := c.engine.withAccount(ctx, c.userID, func(state *models.AccountState) error {
		equity := c.engine.equity(ctx, state)

		detail = &models.AccountDetail{
			Status:         "ACTIVE",
			Cash:           state.Account.Cash(),
			BuyingPower:    state.Account.BuyingPower(),
			PortfolioValue: equity,
			Equity:         equity,
			Currency:       "USD",
			DaytradeCount:  0,
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("AccountClient.GetAccount: %w", err)
	}

	return detail, nil
}

func (c *AccountClient) GetPositions(ctx context.Context) ([]*models.PositionDetail, error) {
	var details []*models.PositionDetail

	err := c.engine.withAccount(ctx, c.userID, func(state *models.AccountState) error {
		positions := state.Positions.All()
		details = make([]*models.PositionDetail, 0, len(positions))

		for _, position := range positions {
			currentPrice := c.engine.prices.GetPrice(ctx, position.Symbol)
			marketValue := position.Quantity * currentPrice
			costBasis := position.Quantity * position.AvgEntryPrice
			unrealized := marketValue - costBasis

			detail := &models.PositionDetail{
				Symbol:        position.Symbol,
				Quantity:      position.Quantity,
				Side:          "long",
				MarketValue:   marketValue,
				AvgEntryPrice: position.AvgEntryPrice,
				CurrentPrice:  currentPrice,
				UnrealizedPL:  unrealized,
			}

			if costBasis != 0 {
				detail.UnrealizedPLPC = unrealized / costBasis
			}

			details = append(details, detail)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("AccountClient.GetPositions: %w", err)
	}

	return details, nil
}

// ListOrders returns orders newest first. The status filter is either an
// aggregate ("open" for pending orders, "closed" for terminal ones, "all" or
// empty for everything) or a literal order status ("new", "filled",
// "rejected").
func (c *AccountClient) ListOrders(ctx context.Context, status string, limit int) ([]*models.SimOrder, error) {
	var out []*models.SimOrder

	err := c.engine.withAccount(ctx, c.userID, func(state *models.AccountState) error {
		for i := len(state.Orders) - 1; i >= 0; i-- {
			order := state.Orders[i]

			matches, err := matchesStatusFilter(order, status)
			if err != nil {
				return err
			}

			if !matches {
				continue
			}

			out = append(out, cloneOrder(order))

			if limit > 0 && len(out) >= limit {
				break
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("AccountClient.ListOrders: %w", err)
	}

	return out, nil
}

// SubmitOrder validates and records an order. Market orders are settled
// synchronously against the current reference price; limit, stop and
// stop-limit orders stay pending until a matching pass triggers them.
func (c *AccountClient) SubmitOrder(ctx context.Context, req *models.SubmitOrderRequest) (*models.SimOrder, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("AccountClient.SubmitOrder: %w", err)
	}

	var submitted *models.SimOrder

	err := c.engine.withAccount(ctx, c.userID, func(state *models.AccountState) error {
		order := models.NewSimOrder(uuid.New(), req.Symbol, req.Side, req.Quantity, req.Type, req.TimeInForce, req.LimitPrice, req.StopPrice, c.engine.now())
		state.Orders = append(state.Orders, order)

		events := []models.AccountEvent{models.NewOrderSubmittedEvent(order)}

		if order.Type == models.OrderTypeMarket {
			referencePrice := c.engine.prices.GetPrice(ctx, order.Symbol)
			decision := evaluateOrder(order, referencePrice, c.engine.slippage)
			events = append(events, c.engine.settleFill(ctx, state, order, decision.price)...)
		}

		c.engine.persist(ctx, state, events)

		submitted = cloneOrder(order)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("AccountClient.SubmitOrder: %w", err)
	}

	return submitted, nil
}

// GetPortfolioHistory serves recorded equity points for the lookback period,
// downsampled to the requested timeframe.
func (c *AccountClient) GetPortfolioHistory(ctx context.Context, period, timeframe string) ([]*models.PortfolioPoint, error) {
	lookback, err := utils.ParsePeriod(period)
	if err != nil {
		return nil, fmt.Errorf("AccountClient.GetPortfolioHistory: %w", err)
	}

	interval, err := oracle.ParseTimeframe(timeframe)
	if err != nil {
		return nil, fmt.Errorf("AccountClient.GetPortfolioHistory: %w", err)
	}

	var points []*models.PortfolioPoint

	err = c.engine.withAccount(ctx, c.userID, func(state *models.AccountState) error {
		history, err := c.engine.db.LoadEquityHistory(ctx, state.Account.ID, c.engine.now().Add(-lookback))
		if err != nil {
			return err
		}

		points = buildPortfolioPoints(history, state.Account.StartingBalance, interval)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("AccountClient.GetPortfolioHistory: %w", err)
	}

	return points, nil
}

func (c *AccountClient) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	bars, err := c.engine.bars.GetBars(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("AccountClient.GetBars: %w", err)
	}

	return bars, nil
}

func (c *AccountClient) GetTradeSnapshot(ctx context.Context, orderID uuid.UUID) (*models.Snapshot, error) {
	snapshot, found, err := c.engine.db.LoadSnapshot(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("AccountClient.GetTradeSnapshot: %w", err)
	}

	if !found {
		return nil, models.ErrOrderNotFound
	}

	return snapshot, nil
}

// ResetAccount wipes cash, positions and orders back to the given starting
// balance. The reset is appended to the event log, so the account's full
// history remains replayable across resets.
func (c *AccountClient) ResetAccount(ctx context.Context, balance float64) error {
	if balance <= 0 {
		return fmt.Errorf("AccountClient.ResetAccount: balance must be positive, got %.2f", balance)
	}

	err := c.engine.withAccount(ctx, c.userID, func(state *models.AccountState) error {
		state.Account.Reset(balance)
		state.Positions.Clear()
		state.Orders = nil

		events := []models.AccountEvent{models.NewResetEvent(balance, c.engine.now())}
		if err := c.engine.db.SaveAccount(ctx, state, events); err != nil {
			return err
		}

		eventpubsub.Publish(eventpubsub.AccountResetEvent, eventpubsub.AccountReset{
			UserID:          c.userID,
			StartingBalance: balance,
		})

		return nil
	})
	if err != nil {
		return fmt.Errorf("AccountClient.ResetAccount: %w", err)
	}

	return nil
}

func matchesStatusFilter(order *models.SimOrder, status string) (bool, error) {
	switch status {
	case "", "all":
		return true, nil
	case "open":
		return order.IsPending(), nil
	case "closed":
		return !order.IsPending(), nil
	default:
		if err := models.OrderStatus(status).Validate(); err != nil {
			return false, fmt.Errorf("invalid order status filter: %s", status)
		}

		return order.Status == models.OrderStatus(status), nil
	}
}

func cloneOrder(order *models.SimOrder) *models.SimOrder {
	clone := *order
	return &clone
}

// buildPortfolioPoints downsamples equity history to one point per interval
// bucket, keeping the last sample of each bucket.
func buildPortfolioPoints(history []models.EquityPoint, startingBalance float64, interval time.Duration) []*models.PortfolioPoint {
	buckets := make(map[int64]models.EquityPoint)
	order := make([]int64, 0, len(history))

	for _, point := range history {
		bucket := point.Timestamp.Truncate(interval).Unix()
		if _, seen := buckets[bucket]; !seen {
			order = append(order, bucket)
		}

		buckets[bucket] = point
	}

	points := make([]*models.PortfolioPoint, 0, len(order))
	for _, bucket := range order {
		point := buckets[bucket]
		profitLoss := point.Equity - startingBalance

		out := &models.PortfolioPoint{
			Time:       point.Timestamp.Truncate(interval),
			Equity:     point.Equity,
			ProfitLoss: profitLoss,
		}

		if startingBalance != 0 {
			out.ProfitLossPct = profitLoss / startingBalance
		}

		points = append(points, out)
	}

	return points
}
