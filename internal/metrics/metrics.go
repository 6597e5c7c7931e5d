// Package metrics exposes rate proxy metrics in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vadiminshakov/p2prate/internal/domain"
)

const namespace = "p2prate"

// RateMetrics holds all proxy metrics on its own registry.
type RateMetrics struct {
	registry *prometheus.Registry

	// /rate reads by source: cache or refresh
	RequestsTotal *prometheus.CounterVec
	// refresh attempts by result: success or error
	RefreshTotal       *prometheus.CounterVec
	RefreshDuration    prometheus.Histogram
	ConsecutiveErrors  prometheus.Gauge
	FinalRate          prometheus.Gauge
	RealRate           prometheus.Gauge
	LastRefreshSeconds prometheus.Gauge
}

// NewRateMetrics creates and registers the metrics.
func NewRateMetrics() *RateMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &RateMetrics{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_requests_total",
				Help:      "Rate reads, by whether they were answered from cache",
			},
			[]string{"source"},
		),
		RefreshTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_total",
				Help:      "Refresh attempts by result",
			},
			[]string{"result"},
		),
		RefreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Time to fetch both legs and compute the rate",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
		ConsecutiveErrors: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consecutive_refresh_errors",
			Help:      "Consecutive failed refreshes",
		}),
		FinalRate: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "final_rate",
			Help:      "Last computed rate with margin",
		}),
		RealRate: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "real_rate",
			Help:      "Last computed rate without margin",
		}),
		LastRefreshSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_refresh_timestamp_seconds",
			Help:      "Unix time of the last successful refresh",
		}),
	}
}

// ObserveRequest counts one rate read.
func (m *RateMetrics) ObserveRequest(cached bool) {
	source := "refresh"
	if cached {
		source = "cache"
	}
	m.RequestsTotal.WithLabelValues(source).Inc()
}

// ObserveRefresh records the outcome of one refresh.
func (m *RateMetrics) ObserveRefresh(snap *domain.RateSnapshot, consecutiveFailures int, took time.Duration, err error) {
	m.RefreshDuration.Observe(took.Seconds())
	m.ConsecutiveErrors.Set(float64(consecutiveFailures))

	if err != nil {
		m.RefreshTotal.WithLabelValues("error").Inc()
		return
	}
	m.RefreshTotal.WithLabelValues("success").Inc()
	if snap != nil {
		m.FinalRate.Set(snap.FinalRate.InexactFloat64())
		m.RealRate.Set(snap.RealRate.InexactFloat64())
		m.LastRefreshSeconds.Set(float64(snap.Timestamp.Unix()))
	}
}

// Handler serves the registry.
func (m *RateMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests and custom exporters.
func (m *RateMetrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
