package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// API METRICS

type Metrics struct {
	registry          *prometheus.Registry
	calculationsTotal *prometheus.CounterVec
	calculationTime   prometheus.Histogram
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	calculationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autovedo_calculations_total",
		Help: "Finished import cost calculations by country and status.",
	}, []string{"country", "status"})

	calculationTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "autovedo_calculation_duration_seconds",
		Help:    "Import cost calculation duration.",
		Buckets: prometheus.DefBuckets,
	})

	registry.MustRegister(calculationsTotal, calculationTime)
	return &Metrics{
		registry:          registry,
		calculationsTotal: calculationsTotal,
		calculationTime:   calculationTime,
	}
}

func (m *Metrics) ObserveCalculation(country, status string, started time.Time) {
	m.calculationsTotal.WithLabelValues(country, status).Inc()
	m.calculationTime.Observe(time.Since(started).Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
