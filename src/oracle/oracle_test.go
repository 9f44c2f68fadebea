package oracle

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradevane/tradevane/src/eventpubsub"
	"github.com/tradevane/tradevane/src/models"
)

func TestMain(m *testing.M) {
	eventpubsub.Init()
	os.Exit(m.Run())
}

type scriptedFetcher struct {
	mu     sync.Mutex
	price  float64
	err    error
	delay  time.Duration
	calls  int
}

func (f *scriptedFetcher) FetchQuote(ctx context.Context, symbol string) (float64, error) {
	f.mu.Lock()
	f.calls++
	price, err, delay := f.price, f.err, f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	if err != nil {
		return 0, err
	}

	return price, nil
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *scriptedFetcher) set(price float64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.price = price
	f.err = err
}

func TestPriceOracleCaching(t *testing.T) {
	ctx := context.Background()

	t.Run("serves cached price within ttl", func(t *testing.T) {
		fetcher := &scriptedFetcher{price: 101.5}
		o := NewPriceOracle(fetcher, time.Minute, time.Second)

		first := o.GetPrice(ctx, "AAPL")
		second := o.GetPrice(ctx, "AAPL")

		assert.Equal(t, 101.5, first)
		assert.Equal(t, 101.5, second)
		assert.Equal(t, 1, fetcher.callCount())
	})

	t.Run("refetches after ttl expiry", func(t *testing.T) {
		fetcher := &scriptedFetcher{price: 101.5}
		o := NewPriceOracle(fetcher, 10*time.Millisecond, time.Second)

		o.GetPrice(ctx, "AAPL")
		time.Sleep(25 * time.Millisecond)

		fetcher.set(102.0, nil)
		price := o.GetPrice(ctx, "AAPL")

		assert.Equal(t, 102.0, price)
		assert.Equal(t, 2, fetcher.callCount())
	})

	t.Run("caches per symbol", func(t *testing.T) {
		fetcher := &scriptedFetcher{price: 55.0}
		o := NewPriceOracle(fetcher, time.Minute, time.Second)

		o.GetPrice(ctx, "AAPL")
		o.GetPrice(ctx, "TSLA")

		assert.Equal(t, 2, fetcher.callCount())
	})
}

func TestPriceOracleFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("serves last known price after fetch failure", func(t *testing.T) {
		fetcher := &scriptedFetcher{price: 250.0}
		o := NewPriceOracle(fetcher, 10*time.Millisecond, time.Second)

		first := o.GetPrice(ctx, "MSFT")
		require.Equal(t, 250.0, first)

		time.Sleep(25 * time.Millisecond)
		fetcher.set(0, fmt.Errorf("connection refused"))

		price := o.GetPrice(ctx, "MSFT")
		assert.Equal(t, 250.0, price)
	})

	t.Run("serves deterministic mock when never fetched", func(t *testing.T) {
		fetcher := &scriptedFetcher{err: fmt.Errorf("connection refused")}
		o := NewPriceOracle(fetcher, time.Minute, time.Second)

		price := o.GetPrice(ctx, "NVDA")
		assert.Equal(t, MockPrice("NVDA"), price)
		assert.Greater(t, price, 0.0)
	})

	t.Run("publishes typed error on fetch failure", func(t *testing.T) {
		fetcher := &scriptedFetcher{err: fmt.Errorf("connection refused")}
		o := NewPriceOracle(fetcher, time.Minute, time.Second)

		published := make(chan error, 1)
		handler := func(err error) { published <- err }
		require.NoError(t, eventpubsub.Subscribe(eventpubsub.Error, handler))
		defer eventpubsub.Unsubscribe(eventpubsub.Error, handler)

		o.GetPrice(ctx, "AMD")
		eventpubsub.WaitAsync()

		select {
		case err := <-published:
			assert.ErrorIs(t, err, models.ErrPriceUnavailable)
			assert.Contains(t, err.Error(), "AMD")
		default:
			t.Fatal("no error published on fetch failure")
		}
	})

	t.Run("bounds slow fetches by timeout", func(t *testing.T) {
		fetcher := &scriptedFetcher{price: 99.0, delay: 5 * time.Second}
		o := NewPriceOracle(fetcher, time.Minute, 20*time.Millisecond)

		start := time.Now()
		price := o.GetPrice(ctx, "AMZN")

		assert.Less(t, time.Since(start), time.Second)
		assert.Equal(t, MockPrice("AMZN"), price)
	})
}

func TestMockPrice(t *testing.T) {
	t.Run("deterministic per symbol", func(t *testing.T) {
		assert.Equal(t, MockPrice("AAPL"), MockPrice("AAPL"))
	})

	t.Run("within expected band", func(t *testing.T) {
		for _, symbol := range []string{"AAPL", "TSLA", "COIN", "SPY", "QQQ"} {
			price := MockPrice(symbol)
			assert.GreaterOrEqual(t, price, 50.0)
			assert.Less(t, price, 500.0)
		}
	})
}
