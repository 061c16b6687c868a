// Package metrics exposes the scanner's Prometheus instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ScanDuration tracks wall-clock duration of full scan passes.
	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nearboard_scan_duration_seconds",
		Help:    "Duration of full scan passes in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	// ScansTotal counts completed scan passes.
	ScansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nearboard_scans_total",
		Help: "Total completed scan passes",
	})

	// SymbolOutcomes counts per-symbol gate pipeline outcomes.
	SymbolOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nearboard_scan_symbols_total",
		Help: "Per-symbol scan outcomes by result",
	}, []string{"outcome"})

	// BoardRows is the row count of the most recently committed board.
	BoardRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nearboard_board_rows",
		Help: "Rows on the most recently committed board",
	})

	// UniverseSize is the symbol count of the current universe.
	UniverseSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nearboard_universe_size",
		Help: "Symbols in the current universe",
	})

	providerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nearboard_provider_requests_total",
		Help: "Market data provider requests by endpoint and result",
	}, []string{"endpoint", "result"})

	providerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nearboard_provider_request_duration_seconds",
		Help:    "Market data provider request duration in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"endpoint"})
)

// ObserveProviderRequest records one provider call.
func ObserveProviderRequest(endpoint string, ok bool, duration time.Duration) {
	result := "ok"
	if !ok {
		result = "error"
	}
	providerRequests.WithLabelValues(endpoint, result).Inc()
	providerDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
