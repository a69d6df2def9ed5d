package backend

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the Prometheus collectors for the relay. Each Metrics owns
// its registry so tests can build as many as they like. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	resolutions   *prometheus.CounterVec
	detections    *prometheus.CounterVec
	acquiredBytes prometheus.Histogram
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "songdetect",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "songdetect",
			Name:      "resolutions_total",
			Help:      "Media resolutions by platform and outcome.",
		}, []string{"platform", "outcome"}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "songdetect",
			Name:      "detections_total",
			Help:      "Fingerprint submissions by outcome.",
		}, []string{"outcome"}),
		acquiredBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "songdetect",
			Name:      "acquired_audio_bytes",
			Help:      "Size of audio files that passed acquisition.",
			Buckets:   prometheus.ExponentialBuckets(64<<10, 2, 8),
		}),
	}

	m.Registry.MustRegister(
		m.httpRequests,
		m.resolutions,
		m.detections,
		m.acquiredBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveHTTP records one finished HTTP request.
func (m *Metrics) ObserveHTTP(method, route, status string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
}

func (m *Metrics) observeResolve(p Platform, err error) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(string(p), outcome(err)).Inc()
}

func (m *Metrics) observeDetect(err error) {
	if m == nil {
		return
	}
	m.detections.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) observeAcquired(size int64) {
	if m == nil {
		return
	}
	m.acquiredBytes.Observe(float64(size))
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return string(KindOf(err))
}
