package paper

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Results summarizes a paper session.
type Results struct {
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	StartingBalance float64   `json:"starting_balance"`
	Balance         float64   `json:"balance"`
	Equity          float64   `json:"equity"`
	RealizedPnL     float64   `json:"realized_pnl"`
	Fees            float64   `json:"fees"`
	Trades          int       `json:"trades"`
	Wins            int       `json:"wins"`
	Losses          int       `json:"losses"`
	WinRate         float64   `json:"win_rate"`
	OpenPositions   int       `json:"open_positions"`
	History         []Trade   `json:"history"`
}

// Summarize builds Results from the account and the ledger of closed trades.
func Summarize(account *Account, ledger *Ledger, started time.Time, marks map[string]float64) Results {
	snap := account.Snapshot(marks)
	trades := ledger.Snapshot()
	r := Results{
		StartedAt:       started,
		FinishedAt:      time.Now(),
		StartingBalance: account.StartingBalance(),
		Balance:         snap.Balance,
		Equity:          snap.Equity,
		RealizedPnL:     snap.Realized,
		Fees:            snap.Fees,
		Trades:          len(trades),
		OpenPositions:   len(snap.Positions),
		History:         trades,
	}
	for _, t := range trades {
		if t.PnL > 0 {
			r.Wins++
		} else {
			r.Losses++
		}
	}
	if r.Trades > 0 {
		r.WinRate = float64(r.Wins) / float64(r.Trades)
	}
	return r
}

// SaveResults writes r as indented JSON, creating parent directories.
func SaveResults(path string, r Results) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}
