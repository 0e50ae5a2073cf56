package market

import (
	"fmt"
	"strings"
	"time"
)

var timeframes = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// ParseTimeframe maps an exchange interval identifier to its bar duration.
func ParseTimeframe(tf string) (time.Duration, error) {
	d, ok := timeframes[strings.ToLower(strings.TrimSpace(tf))]
	if !ok {
		return 0, fmt.Errorf("unknown timeframe %q", tf)
	}
	return d, nil
}

// Key identifies one (instrument, timeframe) stream.
type Key struct {
	Instrument string
	Timeframe  string
}

func (k Key) String() string { return k.Instrument + "_" + k.Timeframe }
