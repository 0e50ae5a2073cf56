// Package market defines time bars, timeframes and the bounded bar buffer.
package market

import (
	"math"
	"time"
)

// Bar is one OHLCV aggregation for a timeframe. A closed bar is never mutated.
type Bar struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
	Closed   bool      `json:"closed"`
}

// Valid reports whether prices are finite and positive and the high/low
// envelope contains open and close.
func (b Bar) Valid() bool {
	for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close} {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if b.Volume < 0 || math.IsNaN(b.Volume) || math.IsInf(b.Volume, 0) {
		return false
	}
	return b.High >= math.Max(b.Open, b.Close) && b.Low <= math.Min(b.Open, b.Close)
}

// Closes extracts closing prices in order.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Volumes extracts volumes in order.
func Volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}
