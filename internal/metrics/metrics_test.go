package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestServeRegistersMetrics(t *testing.T) {
	srv := Serve("127.0.0.1:0")
	defer srv.Close()

	BarsClosed.WithLabelValues("BTCUSDT", "1m").Inc()
	SignalsTotal.WithLabelValues("BTCUSDT", "BUY", "momentum").Inc()

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	want := map[string]bool{"bars_closed_total": false, "signals_total": false}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("%s metric not found", name)
		}
	}
}
