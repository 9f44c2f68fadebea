package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimOrder(t *testing.T) {
	now := time.Now()

	t.Run("fill transitions new to filled", func(t *testing.T) {
		order := NewSimOrder(uuid.New(), "AAPL", OrderSideBuy, 10, OrderTypeMarket, "day", nil, nil, now)

		require.NoError(t, order.Fill(100.5, now))

		assert.Equal(t, OrderStatusFilled, order.Status)
		assert.Equal(t, 100.5, order.FilledPrice)
		require.NotNil(t, order.FilledAt)
		assert.Equal(t, now, *order.FilledAt)
	})

	t.Run("reject transitions new to rejected with reason", func(t *testing.T) {
		order := NewSimOrder(uuid.New(), "AAPL", OrderSideBuy, 10, OrderTypeMarket, "day", nil, nil, now)

		require.NoError(t, order.Reject(ErrInsufficientFunds))

		assert.Equal(t, OrderStatusRejected, order.Status)
		require.NotNil(t, order.RejectReason)
		assert.Equal(t, ErrInsufficientFunds.Error(), *order.RejectReason)
	})

	t.Run("terminal orders are immutable", func(t *testing.T) {
		order := NewSimOrder(uuid.New(), "AAPL", OrderSideBuy, 10, OrderTypeMarket, "day", nil, nil, now)
		require.NoError(t, order.Fill(100.0, now))

		assert.ErrorIs(t, order.Fill(101.0, now), ErrOrderIsTerminal)
		assert.ErrorIs(t, order.Reject(ErrInsufficientFunds), ErrOrderIsTerminal)
		assert.Equal(t, 100.0, order.FilledPrice)
	})

	t.Run("fill rejects non-positive price", func(t *testing.T) {
		order := NewSimOrder(uuid.New(), "AAPL", OrderSideBuy, 10, OrderTypeMarket, "day", nil, nil, now)

		assert.Error(t, order.Fill(0, now))
		assert.Equal(t, OrderStatusNew, order.Status)
	})

	t.Run("signed quantity is negative for sells", func(t *testing.T) {
		buy := NewSimOrder(uuid.New(), "AAPL", OrderSideBuy, 10, OrderTypeMarket, "day", nil, nil, now)
		sell := NewSimOrder(uuid.New(), "AAPL", OrderSideSell, 10, OrderTypeMarket, "day", nil, nil, now)

		assert.Equal(t, 10.0, buy.SignedQuantity())
		assert.Equal(t, -10.0, sell.SignedQuantity())
	})
}

func TestSubmitOrderRequestValidate(t *testing.T) {
	limitPrice := 100.0
	stopPrice := 95.0

	t.Run("valid market order", func(t *testing.T) {
		req := &SubmitOrderRequest{Symbol: "AAPL", Quantity: 10, Side: OrderSideBuy, Type: OrderTypeMarket}
		assert.NoError(t, req.Validate())
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		req := &SubmitOrderRequest{Symbol: "AAPL", Quantity: 0, Side: OrderSideBuy, Type: OrderTypeMarket}
		assert.ErrorIs(t, req.Validate(), ErrInvalidOrderQuantity)
	})

	t.Run("invalid side and type", func(t *testing.T) {
		req := &SubmitOrderRequest{Symbol: "AAPL", Quantity: 1, Side: "short", Type: OrderTypeMarket}
		assert.Error(t, req.Validate())

		req = &SubmitOrderRequest{Symbol: "AAPL", Quantity: 1, Side: OrderSideBuy, Type: "trailing_stop"}
		assert.Error(t, req.Validate())
	})

	t.Run("limit order requires limit price", func(t *testing.T) {
		req := &SubmitOrderRequest{Symbol: "AAPL", Quantity: 1, Side: OrderSideBuy, Type: OrderTypeLimit}
		assert.ErrorIs(t, req.Validate(), ErrMissingLimitPrice)

		req.LimitPrice = &limitPrice
		assert.NoError(t, req.Validate())
	})

	t.Run("stop limit requires both prices", func(t *testing.T) {
		req := &SubmitOrderRequest{Symbol: "AAPL", Quantity: 1, Side: OrderSideSell, Type: OrderTypeStopLimit, LimitPrice: &limitPrice}
		assert.ErrorIs(t, req.Validate(), ErrMissingStopPrice)

		req.StopPrice = &stopPrice
		assert.NoError(t, req.Validate())
	})
}
