// Package metrics registers the viewer's Prometheus collectors and exposes
// them for scraping at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DatasetLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parcelview_dataset_loads_total",
		Help: "Dataset load attempts by outcome (hit, miss, error)",
	}, []string{"outcome"})
	DatasetLoadDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "parcelview_dataset_load_duration_ms",
		Help:    "Decrypt and parse duration in milliseconds for cache misses",
		Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	})
	DatasetParcels = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "parcelview_dataset_parcels",
		Help: "Parcels in the most recently loaded dataset",
	})
	LoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parcelview_logins_total",
		Help: "Login attempts by result (ok, denied)",
	}, []string{"result"})
	SelectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parcelview_selections_total",
		Help: "Row selection events by whether the view moved",
	}, []string{"moved"})
	ExportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parcelview_exports_total",
		Help: "Lead list exports by format",
	}, []string{"format"})
	HTTPRequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parcelview_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"route", "status"})
)

func init() {
	prometheus.MustRegister(DatasetLoadsTotal)
	prometheus.MustRegister(DatasetLoadDurationMs)
	prometheus.MustRegister(DatasetParcels)
	prometheus.MustRegister(LoginsTotal)
	prometheus.MustRegister(SelectionsTotal)
	prometheus.MustRegister(ExportsTotal)
	prometheus.MustRegister(HTTPRequestDurationMs)
}

// Handler serves every registered collector.
func Handler() http.Handler { return promhttp.Handler() }
