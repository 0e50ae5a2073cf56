// Package orchestrator runs one worker per instrument that turns closed bars
// into entries, reversals and exits.
package orchestrator

import (
	"sort"
	"sync"

	"fusionbot-go/internal/market"
	"fusionbot-go/internal/metrics"
)

// State is an instrument's position state.
type State int

const (
	Monitoring State = iota
	InLong
	InShort
)

func (s State) String() string {
	switch s {
	case InLong:
		return "IN_LONG"
	case InShort:
		return "IN_SHORT"
	}
	return "MONITORING"
}

// Side returns the held side, false while monitoring.
func (s State) Side() (market.Side, bool) {
	switch s {
	case InLong:
		return market.Long, true
	case InShort:
		return market.Short, true
	}
	return 0, false
}

func holding(side market.Side) State {
	if side == market.Short {
		return InShort
	}
	return InLong
}

// Status is the process-wide instrument state map. Unknown instruments are
// MONITORING.
type Status struct {
	mu     sync.Mutex
	states map[string]State
}

// NewStatus returns an empty map.
func NewStatus() *Status {
	return &Status{states: make(map[string]State)}
}

// Get returns the current state of instrument.
func (s *Status) Get(instrument string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[instrument]
}

// Transition moves instrument from one state to another only if it is
// currently in from.
func (s *Status) Transition(instrument string, from, to State) bool {
	s.mu.Lock()
	if s.states[instrument] != from {
		s.mu.Unlock()
		return false
	}
	s.states[instrument] = to
	s.mu.Unlock()
	metrics.TransitionsTotal.WithLabelValues(instrument, from.String(), to.String()).Inc()
	return true
}

// Reset forces instrument back to MONITORING and returns the prior state.
func (s *Status) Reset(instrument string) State {
	s.mu.Lock()
	prev := s.states[instrument]
	s.states[instrument] = Monitoring
	s.mu.Unlock()
	if prev != Monitoring {
		metrics.TransitionsTotal.WithLabelValues(instrument, prev.String(), Monitoring.String()).Inc()
	}
	return prev
}

// Snapshot copies the map.
func (s *Status) Snapshot() map[string]State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]State, len(s.states))
	for k, v := range s.states {
		out[k] = v
	}
	return out
}

// Holding lists instruments with an open position in a stable order.
func (s *Status) Holding() []string {
	s.mu.Lock()
	var out []string
	for k, v := range s.states {
		if v != Monitoring {
			out = append(out, k)
		}
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}
