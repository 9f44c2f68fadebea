package oracle

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tradevane/tradevane/src/eventpubsub"
	"github.com/tradevane/tradevane/src/models"
)

// QuoteFetcher fetches a reference price for a symbol. Implementations may
// perform network I/O and must honor the context deadline.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, symbol string) (float64, error)
}

// PriceOracle serves a reference price per symbol with bounded staleness.
// A fresh fetch is attempted only when the cached entry is stale or absent;
// on failure the last known price is served, then a deterministic mock.
// GetPrice never fails and never blocks past the fetch timeout.
type PriceOracle struct {
	fetcher QuoteFetcher
	fresh   *cache.Cache
	timeout time.Duration

	mu        sync.RWMutex
	lastKnown map[string]float64
}

func NewPriceOracle(fetcher QuoteFetcher, ttl, fetchTimeout time.Duration) *PriceOracle {
	return &PriceOracle{
		fetcher:   fetcher,
		fresh:     cache.New(ttl, 2*ttl),
		timeout:   fetchTimeout,
		lastKnown: make(map[string]float64),
	}
}

func (o *PriceOracle) GetPrice(ctx context.Context, symbol string) float64 {
	if cached, found := o.fresh.Get(symbol); found {
		return cached.(float64)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	price, err := o.fetcher.FetchQuote(fetchCtx, symbol)
	if err != nil {
		eventpubsub.PublishError("PriceOracle.GetPrice", fmt.Errorf("%w for %s, using fallback: %v", models.ErrPriceUnavailable, symbol, err))
		return o.fallback(symbol)
	}

	o.fresh.Set(symbol, price, cache.DefaultExpiration)

	o.mu.Lock()
	o.lastKnown[symbol] = price
	o.mu.Unlock()

	return price
}

func (o *PriceOracle) fallback(symbol string) float64 {
	o.mu.RLock()
	last, found := o.lastKnown[symbol]
	o.mu.RUnlock()

	if found {
		return last
	}

	return MockPrice(symbol)
}

// MockPrice derives a stable pseudo-quote from the symbol name, used when no
// live price was ever fetched. Deterministic so tests and offline runs are
// reproducible.
func MockPrice(symbol string) float64 {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	sum := h.Sum32()

	dollars := float64(50 + sum%450)
	cents := float64(sum%100) / 100.0

	return dollars + cents
}
