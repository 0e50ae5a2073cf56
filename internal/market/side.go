package market

import (
	"fmt"
	"strings"
)

// Side is the direction of an open position.
type Side int

const (
	Long Side = iota + 1
	Short
)

func (s Side) String() string {
	switch s {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	}
	return "NONE"
}

// Sign is +1 for Long, -1 for Short and 0 otherwise.
func (s Side) Sign() float64 {
	switch s {
	case Long:
		return 1
	case Short:
		return -1
	}
	return 0
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	switch s {
	case Long:
		return Short
	case Short:
		return Long
	}
	return s
}

// MarshalText encodes the side as LONG or SHORT.
func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText accepts LONG/SHORT and the BUY/SELL aliases.
func (s *Side) UnmarshalText(b []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(b))) {
	case "LONG", "BUY":
		*s = Long
	case "SHORT", "SELL":
		*s = Short
	default:
		return fmt.Errorf("unknown side %q", b)
	}
	return nil
}
