package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func zigzag(n int) []float64 {
	out := make([]float64, n)
	px := 100.0
	for i := range out {
		// deterministic but irregular walk
		step := math.Sin(float64(i)*1.7) * 1.3
		if i%5 == 0 {
			step = -step * 2
		}
		px += step
		out[i] = px
	}
	return out
}

func TestEMAFlatSeriesStaysExact(t *testing.T) {
	ema := EMA(flat(50, 123.45), 7)
	require.Len(t, ema, 50)
	for _, v := range ema {
		assert.Equal(t, 123.45, v)
	}
	assert.Nil(t, EMA(nil, 5))
}

func TestRSIBounded(t *testing.T) {
	closes := zigzag(200)
	for end := 8; end <= len(closes); end++ {
		v, ok := RSI(closes[:end], 7)
		if !ok {
			continue
		}
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}

	again, _ := RSI(closes, 7)
	first, _ := RSI(closes, 7)
	assert.Equal(t, first, again)
}

func TestRSIUndefinedCases(t *testing.T) {
	_, ok := RSI([]float64{1, 2, 3}, 7)
	assert.False(t, ok, "short history")

	rising := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	_, ok = RSI(rising, 7)
	assert.False(t, ok, "zero average loss")

	res := RSISignal(0, ok, 20, 80)
	assert.Equal(t, Neutral, res.Signal)
	assert.Zero(t, res.Strength)

	falling := []float64{9, 8, 7, 6, 5, 4, 3, 2, 1}
	v, ok := RSI(falling, 7)
	require.True(t, ok)
	assert.Equal(t, 0.0, v)
	res = RSISignal(v, ok, 20, 80)
	assert.Equal(t, Buy, res.Signal)
	assert.Equal(t, 1.0, res.Strength)
}

func TestRSISignalZones(t *testing.T) {
	assert.Equal(t, Sell, RSISignal(90, true, 20, 80).Signal)
	assert.InDelta(t, 0.5, RSISignal(90, true, 20, 80).Strength, 1e-9)
	assert.Equal(t, Buy, RSISignal(10, true, 20, 80).Signal)
	assert.InDelta(t, 0.5, RSISignal(10, true, 20, 80).Strength, 1e-9)
	assert.Equal(t, Neutral, RSISignal(50, true, 20, 80).Signal)
}

func TestMACDCrossoverBuy(t *testing.T) {
	closes := append(flat(20, 100), 101)
	res := MACDSignal(MACD(closes, 5, 13, 6))
	assert.Equal(t, Buy, res.Signal)
	assert.InDelta(t, 1-2.0/7, res.Strength, 1e-9)
	assert.Contains(t, res.Description, "crossed above")
}

func TestMACDFlatIsNeutral(t *testing.T) {
	res := MACDSignal(MACD(flat(40, 100), 5, 13, 6))
	assert.Equal(t, Neutral, res.Signal)
	assert.Equal(t, Neutral, MACDSignal(MACD([]float64{1}, 5, 13, 6)).Signal)
}

func TestBollinger(t *testing.T) {
	b, ok := Bollinger(flat(20, 100), 14, 2)
	require.True(t, ok)
	assert.Equal(t, Neutral, BollingerSignal(100, b, ok).Signal)

	closes := []float64{100, 101, 100, 101, 100, 101, 100, 101, 100, 101, 100, 101, 100, 90}
	b, ok = Bollinger(closes, 14, 2)
	require.True(t, ok)
	res := BollingerSignal(85, b, ok)
	assert.Equal(t, Buy, res.Signal)
	assert.Greater(t, res.Strength, 0.0)
	assert.LessOrEqual(t, res.Strength, 1.0)

	_, ok = Bollinger([]float64{1, 2}, 14, 2)
	assert.False(t, ok)
	assert.Equal(t, Neutral, BollingerSignal(1, Bands{}, false).Signal)
}

func TestEMASignal(t *testing.T) {
	assert.Equal(t, Neutral, EMASignal(100, EMATriplet(flat(60, 100), 7, 14, 30)).Signal)

	up := make([]float64, 60)
	for i := range up {
		up[i] = 100 * math.Pow(1.01, float64(i))
	}
	res := EMASignal(up[len(up)-1], EMATriplet(up, 7, 14, 30))
	assert.Equal(t, Buy, res.Signal)
	assert.LessOrEqual(t, res.Strength, 0.5)

	assert.Equal(t, Neutral, EMASignal(1, EMATriplet([]float64{1}, 7, 14, 30)).Signal)
}

func TestShortHistoriesNeverProduceNonFinite(t *testing.T) {
	for n := 0; n < 40; n++ {
		closes := zigzag(n)
		var price float64
		if n > 0 {
			price = closes[n-1]
		}
		rsi, ok := RSI(closes, 7)
		b, bok := Bollinger(closes, 14, 2)
		results := []Result{
			RSISignal(rsi, ok, 20, 80),
			MACDSignal(MACD(closes, 5, 13, 6)),
			BollingerSignal(price, b, bok),
			EMASignal(price, EMATriplet(closes, 7, 14, 100)),
		}
		for _, r := range results {
			assert.False(t, math.IsNaN(r.Strength) || math.IsInf(r.Strength, 0), "n=%d kind=%s", n, r.Kind)
			assert.GreaterOrEqual(t, r.Strength, 0.0)
			assert.LessOrEqual(t, r.Strength, 1.0)
		}
	}
}

func TestVolatility(t *testing.T) {
	assert.Zero(t, Volatility(flat(30, 100), 20))
	assert.Zero(t, Volatility([]float64{1, 2}, 20))
	assert.Greater(t, Volatility(zigzag(30), 20), 0.0)
}
