package models

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is an immutable capture of market context taken at the instant an
// order fills. It exists for replay only and never feeds matching decisions.
type Snapshot struct {
	OrderID    uuid.UUID         `json:"order_id"`
	Symbol     string            `json:"symbol"`
	FillPrice  float64           `json:"fill_price"`
	Timestamp  time.Time         `json:"timestamp"`
	Bars       []Candle          `json:"ohlcv"`
	Indicators IndicatorSnapshot `json:"indicators"`
	Headlines  []ContextHeadline `json:"news"`
}

type IndicatorSnapshot struct {
	RSI       float64         `json:"rsi"`
	MACD      MACDSnapshot    `json:"macd"`
	Bollinger *BollingerBands `json:"bollinger,omitempty"`
}

type MACDSnapshot struct {
	Line   float64 `json:"line"`
	Signal float64 `json:"signal"`
	Hist   float64 `json:"hist"`
}

type BollingerBands struct {
	Upper         float64 `json:"upper"`
	Lower         float64 `json:"lower"`
	MovingAverage float64 `json:"moving_average"`
}

type ContextHeadline struct {
	Headline string    `json:"headline"`
	Source   string    `json:"source"`
	Time     time.Time `json:"time"`
}
