package oracle

import "context"

// MockFetcher serves deterministic prices without network access. Used when
// no market-data API key is configured.
type MockFetcher struct{}

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{}
}

func (f *MockFetcher) FetchQuote(ctx context.Context, symbol string) (float64, error) {
	return MockPrice(symbol), nil
}
