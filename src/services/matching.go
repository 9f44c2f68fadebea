package services

import (
	"math/rand"
	"sync"

	"github.com/tradevane/tradevane/src/models"
)

// slippageModel draws a uniform slippage fraction and applies it against the
// trader: buys pay more, sells receive less. Limit style fills bypass it
// because the limit price already bounds the execution.
type slippageModel struct {
	min float64
	max float64

	mu  sync.Mutex
	rng *rand.Rand
}

func newSlippageModel(min, max float64, seed int64) *slippageModel {
	return &slippageModel{
		min: min,
		max: max,
		rng: rand.New(rand.NewSource(seed)),
	}
}

func (m *slippageModel) apply(referencePrice float64, side models.OrderSide) float64 {
	m.mu.Lock()
	fraction := m.min + m.rng.Float64()*(m.max-m.min)
	m.mu.Unlock()

	if side == models.OrderSideBuy {
		return referencePrice * (1 + fraction)
	}

	return referencePrice * (1 - fraction)
}

// fillDecision is the outcome of evaluating one pending order against the
// current reference price.
type fillDecision struct {
	triggered bool
	price     float64
}

// evaluateOrder applies the trigger rules for each order type.
//
// Market orders always trigger at the reference price plus slippage. Limit
// orders trigger when the price crosses the limit and fill at the reference
// price. Stop orders trigger when the price crosses the stop and fill like a
// market order. Stop-limit orders require the stop to have triggered and the
// limit condition to hold within the same pass.
func evaluateOrder(order *models.SimOrder, referencePrice float64, slippage *slippageModel) fillDecision {
	switch order.Type {
	case models.OrderTypeMarket:
		return fillDecision{triggered: true, price: slippage.apply(referencePrice, order.Side)}

	case models.OrderTypeLimit:
		if limitSatisfied(order, referencePrice) {
			return fillDecision{triggered: true, price: referencePrice}
		}

	case models.OrderTypeStop:
		if stopTriggered(order, referencePrice) {
			return fillDecision{triggered: true, price: slippage.apply(referencePrice, order.Side)}
		}

	case models.OrderTypeStopLimit:
		if stopTriggered(order, referencePrice) && limitSatisfied(order, referencePrice) {
			return fillDecision{triggered: true, price: referencePrice}
		}
	}

	return fillDecision{}
}

func limitSatisfied(order *models.SimOrder, referencePrice float64) bool {
	if order.LimitPrice == nil {
		return false
	}

	if order.Side == models.OrderSideBuy {
		return referencePrice <= *order.LimitPrice
	}

	return referencePrice >= *order.LimitPrice
}

func stopTriggered(order *models.SimOrder, referencePrice float64) bool {
	if order.StopPrice == nil {
		return false
	}

	if order.Side == models.OrderSideBuy {
		return referencePrice >= *order.StopPrice
	}

	return referencePrice <= *order.StopPrice
}
