package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/tradevane/tradevane/src/indicators"
	"github.com/tradevane/tradevane/src/models"
)

// BarProvider serves historical bars for snapshots and the bars endpoint.
type BarProvider interface {
	GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error)
}

// SnapshotRecorder captures the market context of a fill: recent bars,
// indicator values computed over them, and contextual headlines. A snapshot
// is written once per order and never updated afterwards.
type SnapshotRecorder struct {
	bars      BarProvider
	headlines HeadlineProvider
	barCount  int
}

func NewSnapshotRecorder(bars BarProvider, headlines HeadlineProvider, barCount int) *SnapshotRecorder {
	return &SnapshotRecorder{
		bars:      bars,
		headlines: headlines,
		barCount:  barCount,
	}
}

// indicatorWarmup is the extra history fetched beyond the stored bars so the
// slowest indicator (MACD 26-period EMA plus its signal line) is primed.
const indicatorWarmup = 40

func (r *SnapshotRecorder) Capture(ctx context.Context, orderID uuid.UUID, symbol string, fillPrice float64, at time.Time) (*models.Snapshot, error) {
	bars, err := r.bars.GetBars(ctx, symbol, "1Min", r.barCount+indicatorWarmup)
	if err != nil {
		return nil, fmt.Errorf("SnapshotRecorder.Capture: %w", err)
	}

	stored := bars
	if len(stored) > r.barCount {
		stored = stored[len(stored)-r.barCount:]
	}

	snapshot := &models.Snapshot{
		OrderID:    orderID,
		Symbol:     symbol,
		FillPrice:  fillPrice,
		Timestamp:  at,
		Bars:       stored,
		Indicators: computeIndicators(bars),
	}

	if r.headlines != nil {
		snapshot.Headlines = r.headlines.Headlines(ctx, symbol, at)
	}

	return snapshot, nil
}

// computeIndicators folds the captured bars through the standard indicator
// set. With fewer bars than an indicator's warm-up period the value stays at
// its zero state; the snapshot records whatever was computable.
func computeIndicators(bars []models.Candle) models.IndicatorSnapshot {
	rsi := indicators.NewRsi(14)
	bollinger := indicators.NewBollingerBands(20, 2.0)
	macd := indicators.NewMacd(12, 26, 9)

	var out models.IndicatorSnapshot
	for _, bar := range bars {
		out.RSI = rsi.Update(bar)

		ready, bb, err := bollinger.Update(bar)
		if err != nil {
			log.Warnf("computeIndicators: bollinger update: %v", err)
		} else if ready {
			out.Bollinger = &models.BollingerBands{
				Upper:         bb.Upper,
				Lower:         bb.Lower,
				MovingAverage: bb.MovingAverage,
			}
		}

		if ready, stats := macd.Update(bar); ready {
			out.MACD = models.MACDSnapshot{
				Line:   stats.Line,
				Signal: stats.Signal,
				Hist:   stats.Hist,
			}
		}
	}

	return out
}
