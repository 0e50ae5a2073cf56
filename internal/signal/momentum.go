package signal

import (
	"fmt"
	"sort"

	"fusionbot-go/internal/indicator"
	"fusionbot-go/internal/market"
)

// Momentum is the outcome of the price/volume momentum heuristic.
type Momentum struct {
	Action           Action  `json:"action"`
	Confidence       float64 `json:"confidence"`
	PriceChangePct   float64 `json:"price_change_pct"`
	VolumeMultiplier float64 `json:"volume_multiplier"`
	VolumeValid      bool    `json:"volume_valid"`
	TrendScore       int     `json:"trend_score"`
	Reason           string  `json:"reason"`
}

type move struct {
	pct        float64
	mult       float64
	volumeOK   bool
	currentVol float64
}

// measure computes the percent change over the configured period and the
// last bar's volume against the prior average. The median replaces a
// non-positive mean; volumeOK is false when neither is usable.
func (e *Engine) measure(bars []market.Bar) (move, error) {
	period, avgN := e.mom.PriceChangePeriod, e.mom.VolumeAvgPeriod
	need := max(period, avgN) + 1
	n := len(bars)
	if period <= 0 || avgN <= 0 || n < need {
		return move{}, fmt.Errorf("insufficient history (%d/%d bars)", n, need)
	}
	cur, past := bars[n-1].Close, bars[n-1-period].Close
	if cur <= 0 || !finiteAll(cur) {
		return move{}, fmt.Errorf("invalid current price %v", cur)
	}
	if past <= 0 || !finiteAll(past) {
		return move{}, fmt.Errorf("invalid reference price %v", past)
	}

	m := move{pct: (cur/past - 1) * 100, currentVol: bars[n-1].Volume}
	prior := market.Volumes(bars[n-1-avgN : n-1])
	ref := indicator.Mean(prior)
	if ref <= 0 || !finiteAll(ref) {
		ref = median(prior)
	}
	if ref > 0 && finiteAll(ref) {
		m.mult = m.currentVol / ref
		m.volumeOK = finiteAll(m.mult)
	}
	return m, nil
}

// trendScore grades the last TrendMoves close-to-close moves: +2 strong up,
// +1 up, -1 down, -2 strong down, 0 mixed. A direction needs a majority of
// the moves.
func (e *Engine) trendScore(bars []market.Bar) int {
	moves, n := e.mom.TrendMoves, len(bars)
	if moves <= 0 || n < moves+1 {
		return 0
	}
	majority := moves/2 + 1
	var up, down int
	for i := n - moves; i < n; i++ {
		prev := bars[i-1].Close
		if prev <= 0 {
			continue
		}
		switch ch := (bars[i].Close - prev) / prev; {
		case ch > e.mom.TrendMoveThreshold:
			up++
		case ch < -e.mom.TrendMoveThreshold:
			down++
		}
	}
	switch {
	case up >= majority && down == 0:
		return 2
	case up >= majority:
		return 1
	case down >= majority && up == 0:
		return -2
	case down >= majority:
		return -1
	}
	return 0
}

// Momentum fires on a strong price move backed by a volume surge and a recent
// trend that does not contradict it. Without usable volume history it falls
// back to price alone at a raised threshold.
func (e *Engine) Momentum(bars []market.Bar) Momentum {
	m, err := e.measure(bars)
	if err != nil {
		return Momentum{Action: Wait, Reason: err.Error()}
	}
	thr := e.mom.PriceChangePct
	out := Momentum{Action: Wait, PriceChangePct: m.pct, VolumeMultiplier: m.mult, VolumeValid: m.volumeOK}

	if !m.volumeOK {
		switch {
		case m.currentVol <= 0:
			out.Reason = "volume history and current volume invalid"
		case m.pct >= thr*e.mom.PriceOnlyFactor:
			out.Action, out.Confidence = Buy, e.sig.MediumConfidence
			out.Reason = fmt.Sprintf("price-only momentum +%.2f%%", m.pct)
		case m.pct <= -thr*e.mom.PriceOnlyFactor:
			out.Action, out.Confidence = Sell, e.sig.MediumConfidence
			out.Reason = fmt.Sprintf("price-only momentum %.2f%%", m.pct)
		default:
			out.Reason = fmt.Sprintf("price-only move %.2f%% below %.2f%%", m.pct, thr*e.mom.PriceOnlyFactor)
		}
		return out
	}

	score := e.trendScore(bars)
	out.TrendScore = score
	volOK := m.mult >= e.mom.VolumeMultiplier
	switch {
	case m.pct >= thr && volOK && score >= 0:
		out.Action = Buy
		out.Confidence = e.sig.MediumConfidence
		if score >= 2 || (score == 0 && m.pct >= 2*thr) {
			out.Confidence = e.sig.HighConfidence
		}
	case m.pct <= -thr && volOK && score <= 0:
		out.Action = Sell
		out.Confidence = e.sig.MediumConfidence
		if score <= -2 || (score == 0 && m.pct <= -2*thr) {
			out.Confidence = e.sig.HighConfidence
		}
	}
	out.Reason = fmt.Sprintf("price %.2f%% volume %.1fx trend %d", m.pct, m.mult, score)
	return out
}

// MomentumConfirms reports whether recent momentum supports action with
// relaxed thresholds. Invalid volume history leaves the decision to price.
func (e *Engine) MomentumConfirms(bars []market.Bar, action Action) bool {
	m, err := e.measure(bars)
	if err != nil {
		return false
	}
	priceThr := e.mom.PriceChangePct * e.mom.PriceConfirmFactor
	volOK := !m.volumeOK || m.mult >= e.mom.VolumeMultiplier*e.mom.VolumeConfirmFactor
	switch action {
	case Buy:
		return m.pct >= priceThr && volOK
	case Sell:
		return m.pct <= -priceThr && volOK
	}
	return false
}

func median(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	s := append([]float64(nil), vs...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 0 {
		return (s[mid-1] + s[mid]) / 2
	}
	return s[mid]
}
