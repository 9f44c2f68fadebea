package indicators

import "github.com/tradevane/tradevane/src/models"

type Macd struct {
	fast   *ema
	slow   *ema
	signal *ema
}

type MacdStats struct {
	Line   float64
	Signal float64
	Hist   float64
}

type ema struct {
	period int
	seen   int
	value  float64
}

func (e *ema) update(price float64) float64 {
	e.seen++

	if e.seen == 1 {
		e.value = price
		return e.value
	}

	k := 2.0 / (float64(e.period) + 1.0)
	e.value = price*k + e.value*(1.0-k)

	return e.value
}

// Update feeds one candle and returns the MACD values once both moving
// averages have seen at least their period's worth of closes.
func (m *Macd) Update(c models.Candle) (bool, MacdStats) {
	fast := m.fast.update(c.Close)
	slow := m.slow.update(c.Close)

	if m.slow.seen < m.slow.period {
		return false, MacdStats{}
	}

	line := fast - slow
	signal := m.signal.update(line)

	return true, MacdStats{
		Line:   line,
		Signal: signal,
		Hist:   line - signal,
	}
}

func NewMacd(fastPeriod, slowPeriod, signalPeriod int) *Macd {
	return &Macd{
		fast:   &ema{period: fastPeriod},
		slow:   &ema{period: slowPeriod},
		signal: &ema{period: signalPeriod},
	}
}
