// Package metrics holds the Prometheus collectors exported by the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "datamart"

// Recorder records query and request measurements. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	queries         *prometheus.CounterVec
	queryDuration   *prometheus.HistogramVec
	rowsScanned     *prometheus.CounterVec
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates a Recorder and registers its collectors with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Dataset queries by operation and outcome.",
		}, []string{"op", "outcome"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Time spent answering dataset queries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		rowsScanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_scanned_total",
			Help:      "Rows read from datasets.",
		}, []string{"op"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(r.queries, r.queryDuration, r.rowsScanned, r.requests, r.requestDuration)
	return r
}

// ObserveQuery records one engine operation.
func (r *Recorder) ObserveQuery(op, outcome string, took time.Duration, scanned int) {
	if r == nil {
		return
	}
	r.queries.WithLabelValues(op, outcome).Inc()
	r.queryDuration.WithLabelValues(op).Observe(took.Seconds())
	if scanned > 0 {
		r.rowsScanned.WithLabelValues(op).Add(float64(scanned))
	}
}

// ObserveRequest records one served HTTP request. route is the registered
// path pattern, not the raw URL.
func (r *Recorder) ObserveRequest(method, route string, code int, took time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	r.requestDuration.WithLabelValues(route).Observe(took.Seconds())
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
