package oracle

import (
	"context"
	"fmt"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	polygonmodels "github.com/polygon-io/client-go/rest/models"

	"github.com/tradevane/tradevane/src/models"
)

// PolygonFetcher serves quotes and aggregate bars from the polygon.io REST
// API. The most recent minute close stands in for a live quote.
type PolygonFetcher struct {
	client *polygon.Client
}

func NewPolygonFetcher(apiKey string) *PolygonFetcher {
	return &PolygonFetcher{
		client: polygon.New(apiKey),
	}
}

func (f *PolygonFetcher) FetchQuote(ctx context.Context, symbol string) (float64, error) {
	now := time.Now()

	// look back far enough to cover weekends and market holidays
	params := polygonmodels.ListAggsParams{
		Ticker:     symbol,
		Multiplier: 1,
		Timespan:   polygonmodels.Minute,
		From:       polygonmodels.Millis(now.AddDate(0, 0, -7)),
		To:         polygonmodels.Millis(now),
	}.WithOrder(polygonmodels.Desc).WithLimit(1).WithAdjusted(true)

	iter := f.client.ListAggs(ctx, params)
	for iter.Next() {
		return iter.Item().Close, nil
	}

	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("PolygonFetcher.FetchQuote: %w", err)
	}

	return 0, fmt.Errorf("PolygonFetcher.FetchQuote: no aggregates returned for %s", symbol)
}

func (f *PolygonFetcher) FetchBars(ctx context.Context, symbol string, interval time.Duration, limit int) ([]models.Candle, error) {
	multiplier, timespan, err := toPolygonTimespan(interval)
	if err != nil {
		return nil, fmt.Errorf("PolygonFetcher.FetchBars: %w", err)
	}

	now := time.Now()
	lookback := time.Duration(limit) * interval * 4
	if lookback < 7*24*time.Hour {
		lookback = 7 * 24 * time.Hour
	}

	params := polygonmodels.ListAggsParams{
		Ticker:     symbol,
		Multiplier: multiplier,
		Timespan:   timespan,
		From:       polygonmodels.Millis(now.Add(-lookback)),
		To:         polygonmodels.Millis(now),
	}.WithOrder(polygonmodels.Desc).WithLimit(limit).WithAdjusted(true)

	var bars []models.Candle
	iter := f.client.ListAggs(ctx, params)
	for iter.Next() && len(bars) < limit {
		item := iter.Item()
		bars = append(bars, models.Candle{
			Timestamp: time.Time(item.Timestamp),
			Open:      item.Open,
			High:      item.High,
			Low:       item.Low,
			Close:     item.Close,
			Volume:    item.Volume,
		})
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("PolygonFetcher.FetchBars: %w", err)
	}

	// polygon returned newest first; flip to chronological order
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}

	return bars, nil
}

func toPolygonTimespan(interval time.Duration) (int, polygonmodels.Timespan, error) {
	switch interval {
	case time.Minute:
		return 1, polygonmodels.Minute, nil
	case 5 * time.Minute:
		return 5, polygonmodels.Minute, nil
	case 15 * time.Minute:
		return 15, polygonmodels.Minute, nil
	case time.Hour:
		return 1, polygonmodels.Hour, nil
	case 24 * time.Hour:
		return 1, polygonmodels.Day, nil
	default:
		return 0, "", fmt.Errorf("unsupported bar interval: %v", interval)
	}
}
