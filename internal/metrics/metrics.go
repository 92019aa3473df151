// Package metrics registers the service's Prometheus instruments and serves
// the scrape endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "queries_total", Help: "As-of queries served"},
		[]string{"ticker"},
	)
	SamplesIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "samples_ingested_total", Help: "Samples appended to instrument series"},
		[]string{"ticker", "series"},
	)
	SamplesRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "samples_rejected_total", Help: "Samples rejected for ordering violations"},
		[]string{"ticker"},
	)
	ProviderErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "provider_errors_total", Help: "Upstream data provider failures"},
		[]string{"op"},
	)
	ReportsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "reports_generated_total", Help: "Report snapshots produced"},
	)
	TrackedTickers = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "tracked_tickers", Help: "Tickers currently in the registry"},
	)
)

func init() {
	prometheus.MustRegister(
		QueriesTotal,
		SamplesIngested,
		SamplesRejected,
		ProviderErrors,
		ReportsGenerated,
		TrackedTickers,
	)
}

// Serve exposes /metrics on the given address in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
