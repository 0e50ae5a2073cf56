package signal

import (
	"fmt"
	"math"
	"time"

	"fusionbot-go/internal/indicator"
	"fusionbot-go/internal/market"
)

// Diagnosis lists data problems found in a snapshot.
type Diagnosis struct {
	Bars         int      `json:"bars"`
	Required     int      `json:"required"`
	Sufficient   bool     `json:"sufficient"`
	PriceIssues  []string `json:"price_issues,omitempty"`
	VolumeIssues []string `json:"volume_issues,omitempty"`
	IrregularGap int      `json:"irregular_gaps"`
}

// OK reports sufficient history without price or volume problems.
func (d Diagnosis) OK() bool {
	return d.Sufficient && len(d.PriceIssues) == 0 && len(d.VolumeIssues) == 0
}

// Tradable reports sufficient history without price problems. Volume
// problems only restrict which heuristics apply.
func (d Diagnosis) Tradable() bool { return d.Sufficient && len(d.PriceIssues) == 0 }

func (d Diagnosis) String() string {
	if d.OK() {
		return fmt.Sprintf("data ok (%d bars)", d.Bars)
	}
	return fmt.Sprintf("data issues: bars %d/%d price %v volume %v gaps %d",
		d.Bars, d.Required, d.PriceIssues, d.VolumeIssues, d.IrregularGap)
}

// Quality inspects a snapshot before evaluation.
func (e *Engine) Quality(bars []market.Bar) Diagnosis {
	need := e.MinHistory()
	d := Diagnosis{Bars: len(bars), Required: need, Sufficient: len(bars) >= need}
	if len(bars) == 0 {
		d.PriceIssues = append(d.PriceIssues, "no data")
		return d
	}

	closes := market.Closes(bars)
	price := closes[len(closes)-1]
	lo, hi := closes[0], closes[0]
	for _, c := range closes {
		lo, hi = math.Min(lo, c), math.Max(hi, c)
	}
	switch {
	case price <= 0 || !finiteAll(price):
		d.PriceIssues = append(d.PriceIssues, "invalid current price")
	case hi == lo:
		d.PriceIssues = append(d.PriceIssues, "identical prices")
	case indicator.StdDev(closes)/price < e.sig.MinPriceDeviation:
		d.PriceIssues = append(d.PriceIssues, "extremely low volatility")
	}

	vols := market.Volumes(bars)
	var zero int
	for _, v := range vols {
		if v == 0 {
			zero++
		}
	}
	if vols[len(vols)-1] <= 0 {
		d.VolumeIssues = append(d.VolumeIssues, "current volume zero or negative")
	}
	if m := indicator.Mean(vols); m <= 0 || !finiteAll(m) {
		d.VolumeIssues = append(d.VolumeIssues, "invalid mean volume")
	}
	if zero*2 > len(vols) {
		d.VolumeIssues = append(d.VolumeIssues, fmt.Sprintf("zero volume on %d/%d bars", zero, len(vols)))
	}
	if median(vols) <= 0 {
		d.VolumeIssues = append(d.VolumeIssues, "invalid median volume")
	}

	d.IrregularGap = irregularGaps(bars)
	return d
}

// irregularGaps counts open-time steps that differ from the most common step.
func irregularGaps(bars []market.Bar) int {
	if len(bars) < 3 {
		return 0
	}
	counts := make(map[time.Duration]int)
	for i := 1; i < len(bars); i++ {
		counts[bars[i].OpenTime.Sub(bars[i-1].OpenTime)]++
	}
	var mode time.Duration
	var best int
	for step, c := range counts {
		if c > best || (c == best && step < mode) {
			mode, best = step, c
		}
	}
	return len(bars) - 1 - best
}
