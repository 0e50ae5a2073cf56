package paper

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"fusionbot-go/internal/market"
)

func TestJSONLRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "trades.jsonl")
	rec, err := NewJSONLRecorder(path)
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}
	rec.Record(Trade{ID: "1", Instrument: "BTCUSDT", Side: market.Long, PnL: 2.5})
	rec.Record(Trade{ID: "2", Instrument: "BTCUSDT", Side: market.Short, PnL: -1})
	if err := rec.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	rec.Record(Trade{ID: "3"})

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var trades []Trade
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var tr Trade
		if err := json.Unmarshal(scanner.Bytes(), &tr); err != nil {
			t.Fatalf("decode: %v", err)
		}
		trades = append(trades, tr)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades after close, got %d", len(trades))
	}
	if trades[1].Side != market.Short {
		t.Fatalf("side not round tripped: %v", trades[1].Side)
	}
}
