package services

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradevane/tradevane/src/eventpubsub"
	"github.com/tradevane/tradevane/src/models"
)

func TestMain(m *testing.M) {
	eventpubsub.Init()
	os.Exit(m.Run())
}

type stubPrices struct {
	mu     sync.Mutex
	prices map[string]float64
}

func newStubPrices() *stubPrices {
	return &stubPrices{prices: make(map[string]float64)}
}

func (s *stubPrices) Set(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = price
}

func (s *stubPrices) GetPrice(ctx context.Context, symbol string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if price, found := s.prices[symbol]; found {
		return price
	}

	return 100.0
}

type stubBars struct{}

func (s *stubBars) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	bars := make([]models.Candle, 0, limit)
	start := time.Now().Add(-time.Duration(limit) * time.Minute)

	for i := 0; i < limit; i++ {
		price := 100.0 + float64(i%5)
		bars = append(bars, models.Candle{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price + 0.5,
			Volume:    1000,
		})
	}

	return bars, nil
}

func newTestEngine(db *models.MockDatabase, prices *stubPrices) *Engine {
	cfg := DefaultSimConfig()
	snapshots := NewSnapshotRecorder(&stubBars{}, &StaticHeadlineProvider{}, cfg.SnapshotBarCount)

	return NewEngine(cfg, prices, &stubBars{}, db, snapshots)
}

func TestAccountCreation(t *testing.T) {
	ctx := context.Background()
	db := models.NewMockDatabase()
	engine := newTestEngine(db, newStubPrices())

	client := engine.Account(uuid.New())

	detail, err := client.GetAccount(ctx)
	require.NoError(t, err)

	assert.Equal(t, 100000.0, detail.Cash)
	assert.Equal(t, 400000.0, detail.BuyingPower)
	assert.Equal(t, 100000.0, detail.Equity)
	assert.Equal(t, 100000.0, detail.PortfolioValue)
	assert.Equal(t, "USD", detail.Currency)
	assert.Equal(t, 0, detail.DaytradeCount)
}

func TestMarketBuyEndToEnd(t *testing.T) {
	ctx := context.Background()
	db := models.NewMockDatabase()
	prices := newStubPrices()
	prices.Set("AAPL", 100.0)
	engine := newTestEngine(db, prices)

	userID := uuid.New()
	client := engine.Account(userID)

	order, err := client.SubmitOrder(ctx, &models.SubmitOrderRequest{
		Symbol:      "AAPL",
		Quantity:    10,
		Side:        models.OrderSideBuy,
		Type:        models.OrderTypeMarket,
		TimeInForce: "day",
	})
	require.NoError(t, err)

	require.Equal(t, models.OrderStatusFilled, order.Status)
	assert.GreaterOrEqual(t, order.FilledPrice, 100.0*1.001)
	assert.LessOrEqual(t, order.FilledPrice, 100.0*1.005)
	require.NotNil(t, order.FilledAt)

	detail, err := client.GetAccount(ctx)
	require.NoError(t, err)

	expectedCash := 100000.0 - order.FilledPrice*10
	assert.InDelta(t, expectedCash, detail.Cash, 1e-9)
	assert.InDelta(t, expectedCash+10*100.0, detail.Equity, 1e-9)
	assert.InDelta(t, detail.Equity, detail.PortfolioValue, 1e-9)

	positions, err := client.GetPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "AAPL", positions[0].Symbol)
	assert.Equal(t, 10.0, positions[0].Quantity)
	assert.InDelta(t, order.FilledPrice, positions[0].AvgEntryPrice, 1e-9)

	snapshot, err := client.GetTradeSnapshot(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, snapshot.OrderID)
	assert.Equal(t, "AAPL", snapshot.Symbol)
	assert.Len(t, snapshot.Bars, 20)
	assert.NotNil(t, snapshot.Indicators.Bollinger)
	assert.NotEmpty(t, snapshot.Headlines)

	assert.Equal(t, 1, db.TradeCalls())
}

func TestInsufficientFundsRejectsOrder(t *testing.T) {
	ctx := context.Background()
	db := models.NewMockDatabase()
	prices := newStubPrices()
	prices.Set("AAPL", 100.0)
	engine := newTestEngine(db, prices)

	client := engine.Account(uuid.New())

	order, err := client.SubmitOrder(ctx, &models.SubmitOrderRequest{
		Symbol:      "AAPL",
		Quantity:    10000,
		Side:        models.OrderSideBuy,
		Type:        models.OrderTypeMarket,
		TimeInForce: "day",
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusRejected, order.Status)
	require.NotNil(t, order.RejectReason)
	assert.Contains(t, *order.RejectReason, "insufficient funds")

	detail, err := client.GetAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100000.0, detail.Cash)
}

func TestOverSellRejected(t *testing.T) {
	ctx := context.Background()
	db := models.NewMockDatabase()
	prices := newStubPrices()
	prices.Set("AAPL", 100.0)
	engine := newTestEngine(db, prices)

	client := engine.Account(uuid.New())

	buy, err := client.SubmitOrder(ctx, &models.SubmitOrderRequest{
		Symbol:      "AAPL",
		Quantity:    5,
		Side:        models.OrderSideBuy,
		Type:        models.OrderTypeMarket,
		TimeInForce: "day",
	})
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusFilled, buy.Status)

	sell, err := client.SubmitOrder(ctx, &models.SubmitOrderRequest{
		Symbol:      "AAPL",
		Quantity:    6,
		Side:        models.OrderSideSell,
		Type:        models.OrderTypeMarket,
		TimeInForce: "day",
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusRejected, sell.Status)
	require.NotNil(t, sell.RejectReason)
	assert.Contains(t, *sell.RejectReason, "insufficient position")

	positions, err := client.GetPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 5.0, positions[0].Quantity)
}

func TestLimitOrderLifecycle(t *testing.T) {
	ctx := context.Background()
	db := models.NewMockDatabase()
	prices := newStubPrices()
	prices.Set("AAPL", 100.0)
	engine := newTestEngine(db, prices)

	client := engine.Account(uuid.New())

	order, err := client.SubmitOrder(ctx, &models.SubmitOrderRequest{
		Symbol:      "AAPL",
		Quantity:    10,
		Side:        models.OrderSideBuy,
		Type:        models.OrderTypeLimit,
		TimeInForce: "day",
		LimitPrice:  floatPtr(95.0),
	})
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusNew, order.Status)

	// price stays above the limit: order remains pending across passes
	engine.Tick(ctx)
	engine.Tick(ctx)

	open, err := client.ListOrders(ctx, "open", 0)
	require.NoError(t, err)
	require.Len(t, open, 1)

	// price crosses the limit: next pass fills at the reference price exactly
	prices.Set("AAPL", 94.0)
	engine.Tick(ctx)

	closed, err := client.ListOrders(ctx, "closed", 0)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, models.OrderStatusFilled, closed[0].Status)
	assert.Equal(t, 94.0, closed[0].FilledPrice)

	positions, err := client.GetPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 94.0, positions[0].AvgEntryPrice)
}

func TestListOrdersStatusFilters(t *testing.T) {
	ctx := context.Background()
	db := models.NewMockDatabase()
	prices := newStubPrices()
	prices.Set("AAPL", 100.0)
	engine := newTestEngine(db, prices)

	client := engine.Account(uuid.New())

	filled, err := client.SubmitOrder(ctx, &models.SubmitOrderRequest{
		Symbol:      "AAPL",
		Quantity:    5,
		Side:        models.OrderSideBuy,
		Type:        models.OrderTypeMarket,
		TimeInForce: "day",
	})
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusFilled, filled.Status)

	pending, err := client.SubmitOrder(ctx, &models.SubmitOrderRequest{
		Symbol:      "AAPL",
		Quantity:    5,
		Side:        models.OrderSideBuy,
		Type:        models.OrderTypeLimit,
		TimeInForce: "day",
		LimitPrice:  floatPtr(90.0),
	})
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusNew, pending.Status)

	t.Run("literal status filled", func(t *testing.T) {
		orders, err := client.ListOrders(ctx, "filled", 0)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, filled.ID, orders[0].ID)
	})

	t.Run("literal status new", func(t *testing.T) {
		orders, err := client.ListOrders(ctx, "new", 0)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, pending.ID, orders[0].ID)
	})

	t.Run("literal status rejected", func(t *testing.T) {
		orders, err := client.ListOrders(ctx, "rejected", 0)
		require.NoError(t, err)
		assert.Empty(t, orders)
	})

	t.Run("aliases still work", func(t *testing.T) {
		open, err := client.ListOrders(ctx, "open", 0)
		require.NoError(t, err)
		require.Len(t, open, 1)

		closed, err := client.ListOrders(ctx, "closed", 0)
		require.NoError(t, err)
		require.Len(t, closed, 1)

		all, err := client.ListOrders(ctx, "all", 0)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("unknown filter errors", func(t *testing.T) {
		_, err := client.ListOrders(ctx, "bogus", 0)
		assert.Error(t, err)
	})
}

func TestStopSellTriggersOnDrop(t *testing.T) {
	ctx := context.Background()
	db := models.NewMockDatabase()
	prices := newStubPrices()
	prices.Set("TSLA", 250.0)
	engine := newTestEngine(db, prices)

	client := engine.Account(uuid.New())

	_, err := client.SubmitOrder(ctx, &models.SubmitOrderRequest{
		Symbol:      "TSLA",
		Quantity:    4,
		Side:        models.OrderSideBuy,
		Type:        models.OrderTypeMarket,
		TimeInForce: "day",
	})
	require.NoError(t, err)

	stop, err := client.SubmitOrder(ctx, &models.SubmitOrderRequest{
		Symbol:      "TSLA",
		Quantity:    4,
		Side:        models.OrderSideSell,
		Type:        models.OrderTypeStop,
		TimeInForce: "day",
		StopPrice:   floatPtr(240.0),
	})
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusNew, stop.Status)

	engine.Tick(ctx)
	open, err := client.ListOrders(ctx, "open", 0)
	require.NoError(t, err)
	require.Len(t, open, 1)

	prices.Set("TSLA", 238.0)
	engine.Tick(ctx)

	orders, err := client.ListOrders(ctx, "closed", 0)
	require.NoError(t, err)

	var filledStop *models.SimOrder
	for _, o := range orders {
		if o.ID == stop.ID {
			filledStop = o
		}
	}

	require.NotNil(t, filledStop)
	assert.Equal(t, models.OrderStatusFilled, filledStop.Status)
	assert.Less(t, filledStop.FilledPrice, 238.0)

	positions, err := client.GetPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestResetAccount(t *testing.T) {
	ctx := context.Background()
	db := models.NewMockDatabase()
	prices := newStubPrices()
	prices.Set("AAPL", 100.0)
	engine := newTestEngine(db, prices)

	client := engine.Account(uuid.New())

	_, err := client.SubmitOrder(ctx, &models.SubmitOrderRequest{
		Symbol:      "AAPL",
		Quantity:    10,
		Side:        models.OrderSideBuy,
		Type:        models.OrderTypeMarket,
		TimeInForce: "day",
	})
	require.NoError(t, err)

	require.NoError(t, client.ResetAccount(ctx, 50000))

	detail, err := client.GetAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, detail.Cash)
	assert.Equal(t, 50000.0, detail.Equity)

	positions, err := client.GetPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)

	orders, err := client.ListOrders(ctx, "all", 0)
	require.NoError(t, err)
	assert.Empty(t, orders)

	t.Run("rejects non positive balance", func(t *testing.T) {
		assert.Error(t, client.ResetAccount(ctx, 0))
		assert.Error(t, client.ResetAccount(ctx, -100))
	})
}

func TestEventLogReplayMatchesProjection(t *testing.T) {
	ctx := context.Background()
	db := models.NewMockDatabase()
	prices := newStubPrices()
	prices.Set("AAPL", 100.0)
	prices.Set("TSLA", 250.0)
	engine := newTestEngine(db, prices)

	userID := uuid.New()
	client := engine.Account(userID)

	for _, req := range []*models.SubmitOrderRequest{
		{Symbol: "AAPL", Quantity: 10, Side: models.OrderSideBuy, Type: models.OrderTypeMarket, TimeInForce: "day"},
		{Symbol: "TSLA", Quantity: 2, Side: models.OrderSideBuy, Type: models.OrderTypeMarket, TimeInForce: "day"},
		{Symbol: "AAPL", Quantity: 4, Side: models.OrderSideSell, Type: models.OrderTypeMarket, TimeInForce: "day"},
	} {
		_, err := client.SubmitOrder(ctx, req)
		require.NoError(t, err)
	}

	state, found, err := db.LoadAccount(ctx, userID)
	require.NoError(t, err)
	require.True(t, found)

	events, err := db.LoadEvents(ctx, state.Account.ID)
	require.NoError(t, err)
	require.NotEmpty(t, events)

	cash, book, err := models.ReplayAccountEvents(events)
	require.NoError(t, err)

	assert.InDelta(t, state.Account.Cash(), cash, 1e-9)
	assert.Equal(t, state.Positions.Len(), book.Len())

	for _, pos := range state.Positions.All() {
		replayed, found := book.Get(pos.Symbol)
		require.True(t, found, pos.Symbol)
		assert.InDelta(t, pos.Quantity, replayed.Quantity, 1e-9)
		assert.InDelta(t, pos.AvgEntryPrice, replayed.AvgEntryPrice, 1e-9)
	}
}

func TestPersistFailureKeepsMemoryAuthoritative(t *testing.T) {
	ctx := context.Background()
	db := models.NewMockDatabase()
	prices := newStubPrices()
	prices.Set("AAPL", 100.0)
	engine := newTestEngine(db, prices)

	userID := uuid.New()
	client := engine.Account(userID)

	// force the account into existence before saves start failing
	_, err := client.GetAccount(ctx)
	require.NoError(t, err)

	db.FailNextSave(fmt.Errorf("connection reset"))

	order, err := client.SubmitOrder(ctx, &models.SubmitOrderRequest{
		Symbol:      "AAPL",
		Quantity:    10,
		Side:        models.OrderSideBuy,
		Type:        models.OrderTypeMarket,
		TimeInForce: "day",
	})
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusFilled, order.Status)

	// memory reflects the fill even though the save failed
	positions, err := client.GetPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)

	// the database still holds the pre-fill projection
	state, found, err := db.LoadAccount(ctx, userID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 100000.0, state.Account.Cash())

	// the next successful save converges
	db.FailNextSave(nil)
	_, err = client.SubmitOrder(ctx, &models.SubmitOrderRequest{
		Symbol:      "AAPL",
		Quantity:    1,
		Side:        models.OrderSideBuy,
		Type:        models.OrderTypeMarket,
		TimeInForce: "day",
	})
	require.NoError(t, err)

	state, _, err = db.LoadAccount(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 11.0, state.Positions.HeldQuantity("AAPL"))
}

func TestConcurrentSubmitsSerialize(t *testing.T) {
	ctx := context.Background()
	db := models.NewMockDatabase()
	prices := newStubPrices()
	prices.Set("AAPL", 100.0)
	engine := newTestEngine(db, prices)

	client := engine.Account(uuid.New())

	const workers = 20

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := client.SubmitOrder(ctx, &models.SubmitOrderRequest{
				Symbol:      "AAPL",
				Quantity:    1,
				Side:        models.OrderSideBuy,
				Type:        models.OrderTypeMarket,
				TimeInForce: "day",
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	orders, err := client.ListOrders(ctx, "all", 0)
	require.NoError(t, err)
	require.Len(t, orders, workers)

	var spent float64
	filled := 0
	for _, order := range orders {
		if order.Status == models.OrderStatusFilled {
			filled++
			spent += order.FilledPrice * order.Quantity
		}
	}

	detail, err := client.GetAccount(ctx)
	require.NoError(t, err)

	assert.Equal(t, workers, filled)
	assert.InDelta(t, 100000.0-spent, detail.Cash, 1e-6)
	assert.GreaterOrEqual(t, detail.Cash, 0.0)

	positions, err := client.GetPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, float64(workers), positions[0].Quantity)
}

func TestPortfolioHistory(t *testing.T) {
	ctx := context.Background()
	db := models.NewMockDatabase()
	prices := newStubPrices()
	prices.Set("AAPL", 100.0)
	engine := newTestEngine(db, prices)

	client := engine.Account(uuid.New())

	_, err := client.GetAccount(ctx)
	require.NoError(t, err)

	engine.Tick(ctx)

	points, err := client.GetPortfolioHistory(ctx, "1D", "1Min")
	require.NoError(t, err)
	require.NotEmpty(t, points)

	assert.InDelta(t, 100000.0, points[0].Equity, 1e-9)
	assert.InDelta(t, 0.0, points[0].ProfitLoss, 1e-9)

	t.Run("invalid period", func(t *testing.T) {
		_, err := client.GetPortfolioHistory(ctx, "bogus", "1Min")
		assert.Error(t, err)
	})

	t.Run("invalid timeframe", func(t *testing.T) {
		_, err := client.GetPortfolioHistory(ctx, "1D", "7Min")
		assert.Error(t, err)
	})
}

func TestFillPublishesSnapshotSaved(t *testing.T) {
	ctx := context.Background()
	db := models.NewMockDatabase()
	prices := newStubPrices()
	prices.Set("AAPL", 100.0)
	engine := newTestEngine(db, prices)

	userID := uuid.New()
	client := engine.Account(userID)

	saved := make(chan eventpubsub.SnapshotSaved, 1)
	handler := func(event eventpubsub.SnapshotSaved) { saved <- event }
	require.NoError(t, eventpubsub.Subscribe(eventpubsub.SnapshotSavedEvent, handler))
	defer eventpubsub.Unsubscribe(eventpubsub.SnapshotSavedEvent, handler)

	order, err := client.SubmitOrder(ctx, &models.SubmitOrderRequest{
		Symbol:      "AAPL",
		Quantity:    2,
		Side:        models.OrderSideBuy,
		Type:        models.OrderTypeMarket,
		TimeInForce: "day",
	})
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusFilled, order.Status)

	eventpubsub.WaitAsync()

	select {
	case event := <-saved:
		assert.Equal(t, userID, event.UserID)
		assert.Equal(t, order.ID, event.OrderID)
		assert.Equal(t, "AAPL", event.Symbol)
	default:
		t.Fatal("no snapshot saved event published")
	}
}

func TestSnapshotCapturedOncePerFill(t *testing.T) {
	ctx := context.Background()
	db := models.NewMockDatabase()
	prices := newStubPrices()
	prices.Set("AAPL", 100.0)
	engine := newTestEngine(db, prices)

	client := engine.Account(uuid.New())

	order, err := client.SubmitOrder(ctx, &models.SubmitOrderRequest{
		Symbol:      "AAPL",
		Quantity:    2,
		Side:        models.OrderSideBuy,
		Type:        models.OrderTypeMarket,
		TimeInForce: "day",
	})
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusFilled, order.Status)

	require.Equal(t, 1, db.TradeCalls())

	// further passes never touch the terminal order again
	engine.Tick(ctx)
	engine.Tick(ctx)
	assert.Equal(t, 1, db.TradeCalls())

	t.Run("missing snapshot returns order not found", func(t *testing.T) {
		_, err := client.GetTradeSnapshot(ctx, uuid.New())
		assert.ErrorIs(t, err, models.ErrOrderNotFound)
	})
}
