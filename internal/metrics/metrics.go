// Package metrics counts Data API calls and their latency with Prometheus
// collectors. A CLI process is short-lived, so metrics are exported by writing
// a node_exporter textfile rather than serving /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fmrest/fmrest-cli/internal/fmrest"
)

// Recorder implements fmrest.Observer.
type Recorder struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	statuses *prometheus.CounterVec
}

var _ fmrest.Observer = (*Recorder)(nil)

// NewRecorder registers the fmrest collectors on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fmrest_requests_total",
				Help: "Data API calls by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fmrest_request_duration_seconds",
				Help:    "Duration of Data API calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		statuses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fmrest_responses_total",
				Help: "HTTP responses received by status code",
			},
			[]string{"code"},
		),
	}
}

// ObserveCall records one finished call. status is 0 when no response arrived.
func (r *Recorder) ObserveCall(method fmrest.Method, status int, outcome string, elapsed time.Duration) {
	r.requests.WithLabelValues(string(method), outcome).Inc()
	r.duration.WithLabelValues(string(method)).Observe(elapsed.Seconds())
	if status > 0 {
		r.statuses.WithLabelValues(strconv.Itoa(status)).Inc()
	}
}

// Registry exposes the registry for tests and custom exporters.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes the current values in the text exposition format.
// The file is written atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
