// Package metrics registers the prometheus collectors emitted by the bot.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BarsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bars_closed_total", Help: "Closed bars appended to stream buffers"},
		[]string{"instrument", "timeframe"},
	)
	DecodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stream_decode_errors_total", Help: "Stream messages skipped because they failed to decode"},
		[]string{"instrument", "timeframe"},
	)
	Reconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stream_reconnects_total", Help: "Stream reconnect attempts"},
		[]string{"instrument", "timeframe"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_total", Help: "Signal evaluations by outcome"},
		[]string{"instrument", "action", "strategy"},
	)
	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "state_transitions_total", Help: "Position state machine transitions"},
		[]string{"instrument", "from", "to"},
	)
	RiskDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "risk_decisions_total", Help: "Risk gate decisions"},
		[]string{"allowed", "reason"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders submitted"},
		[]string{"instrument", "side"},
	)
	OrderFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "order_failures_total", Help: "Order calls that failed or timed out"},
		[]string{"instrument", "op"},
	)
	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "open_positions", Help: "Positions currently open"},
	)
)

func init() {
	prometheus.MustRegister(
		BarsClosed, DecodeErrors, Reconnects,
		SignalsTotal, TransitionsTotal, RiskDecisions,
		OrdersTotal, OrderFailures, OpenPositions,
	)
}

// Serve exposes /metrics on addr in the background. The caller owns shutdown.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
