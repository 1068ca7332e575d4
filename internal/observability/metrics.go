// Package observability exposes the service's Prometheus instrumentation.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	readingsIngested  prometheus.Counter
	detectionsTotal   prometheus.Counter
	anomaliesTotal    *prometheus.CounterVec
	detectionDuration prometheus.Histogram
	publishTotal      *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		readingsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "readings_ingested_total",
			Help: "Total readings appended to the store.",
		}),
		detectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "detections_total",
			Help: "Total detection passes executed.",
		}),
		anomaliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "anomalies_total",
			Help: "Total anomalous readings observed, by anomaly kind.",
		}, []string{"kind"}),
		detectionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "detection_duration_seconds",
			Help:    "Histogram of detection pass durations.",
			Buckets: prometheus.DefBuckets,
		}),
		publishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "anomaly_publish_total",
			Help: "Total anomaly events handed to the publisher, by result.",
		}, []string{"result"}),
	}

	prometheus.MustRegister(
		m.httpRequestsTotal,
		m.httpDuration,
		m.readingsIngested,
		m.detectionsTotal,
		m.anomaliesTotal,
		m.detectionDuration,
		m.publishTotal,
	)

	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler instruments a route with request count and duration.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		duration := time.Since(start).Seconds()
		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(duration)
		}
	})
}

// Handler serves the Prometheus exposition.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) ReadingsIngested(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.readingsIngested.Add(float64(n))
}

// DetectionPass records one engine run: its duration and the anomaly kinds
// it produced.
func (m *Metrics) DetectionPass(duration time.Duration, kinds map[string]int) {
	if m == nil {
		return
	}
	m.detectionsTotal.Inc()
	m.detectionDuration.Observe(duration.Seconds())
	for kind, count := range kinds {
		m.anomaliesTotal.WithLabelValues(kind).Add(float64(count))
	}
}

func (m *Metrics) PublishResult(result string) {
	if m == nil {
		return
	}
	m.publishTotal.WithLabelValues(result).Inc()
}
