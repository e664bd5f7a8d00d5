// Package observability holds the Prometheus instrumentation of the API.
package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nearmiss"

// Metrics contains the request and storage metrics of one process.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	incidentWritesTotal *prometheus.CounterVec
	seedRecordsTotal    *prometheus.CounterVec
}

// NewMetrics registers the metrics on a private registry. db may be nil.
func NewMetrics(db *sql.DB) (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)
	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time taken for HTTP requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	m.incidentWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incident_writes_total",
			Help:      "Incident create/update/delete operations",
		},
		[]string{"operation", "status"},
	)
	m.seedRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seed_records_total",
			Help:      "Seed import records by outcome",
		},
		[]string{"outcome"},
	)
	cs := []prometheus.Collector{
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.incidentWritesTotal,
		m.seedRecordsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	if db != nil {
		cs = append(cs, collectors.NewDBStatsCollector(db, namespace))
	}
	for _, c := range cs {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveRequest records one finished request; route is the matched pattern.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordWrite(operation string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.incidentWritesTotal.WithLabelValues(operation, status).Inc()
}

func (m *Metrics) RecordSeed(inserted, skipped int) {
	if m == nil {
		return
	}
	m.seedRecordsTotal.WithLabelValues("inserted").Add(float64(inserted))
	m.seedRecordsTotal.WithLabelValues("skipped").Add(float64(skipped))
}

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
