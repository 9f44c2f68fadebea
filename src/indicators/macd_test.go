package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradevane/tradevane/src/models"
)

func TestMacd(t *testing.T) {
	t.Run("not ready before slow period", func(t *testing.T) {
		macd := NewMacd(3, 6, 2)

		for i := 0; i < 5; i++ {
			ready, _ := macd.Update(models.Candle{Close: 100})
			assert.False(t, ready)
		}
	})

	t.Run("flat series yields zero line", func(t *testing.T) {
		macd := NewMacd(3, 6, 2)

		var result MacdStats
		var ready bool
		for i := 0; i < 10; i++ {
			ready, result = macd.Update(models.Candle{Close: 100})
		}

		require.True(t, ready)
		assert.InDelta(t, 0.0, result.Line, 1e-9)
		assert.InDelta(t, 0.0, result.Hist, 1e-9)
	})

	t.Run("uptrend turns the line positive", func(t *testing.T) {
		macd := NewMacd(3, 6, 2)

		var result MacdStats
		var ready bool
		for i := 0; i < 20; i++ {
			ready, result = macd.Update(models.Candle{Close: 100.0 + float64(i)*2.0})
		}

		require.True(t, ready)
		assert.Greater(t, result.Line, 0.0)
	})
}
