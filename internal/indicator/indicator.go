// Package indicator computes technical indicators over closing prices.
//
// Every function is pure: inputs are never mutated and results depend only on
// arguments, so callers may share one snapshot across goroutines. Short or
// non-finite input degrades to a NEUTRAL result instead of panicking.
package indicator

import (
	"fmt"
	"math"
)

// Signal is the direction an indicator votes for.
type Signal string

const (
	Buy     Signal = "BUY"
	Sell    Signal = "SELL"
	Neutral Signal = "NEUTRAL"
)

// Kind names an indicator.
type Kind string

const (
	KindRSI       Kind = "RSI"
	KindMACD      Kind = "MACD"
	KindBollinger Kind = "BB"
	KindEMA       Kind = "EMA"
)

// Result is one indicator's vote with a strength in [0, 1].
type Result struct {
	Kind        Kind    `json:"kind"`
	Signal      Signal  `json:"signal"`
	Strength    float64 `json:"strength"`
	Description string  `json:"description"`
}

func neutral(kind Kind, format string, args ...any) Result {
	return Result{Kind: kind, Signal: Neutral, Description: fmt.Sprintf(format, args...)}
}

func vote(kind Kind, sig Signal, strength float64, format string, args ...any) Result {
	return Result{Kind: kind, Signal: sig, Strength: unit(strength), Description: fmt.Sprintf(format, args...)}
}

// unit clamps v into [0, 1], mapping NaN to 0.
func unit(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func allFinite(vs []float64) bool { return finite(vs...) }
