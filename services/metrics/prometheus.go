package metricsvc

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hsannu/connect/core/chat"
)

const namespace = "connect"

// Recorder exports the controllers' request and search timings to Prometheus.
type Recorder struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	searches        *prometheus.CounterVec
	searchDuration  prometheus.Histogram
	searchResults   prometheus.Histogram
	controllers     prometheus.Gauge
}

var _ chat.Recorder = (*Recorder)(nil)

// NewRecorder registers the portal metrics (and the Go/process collectors) on a new registry.
func NewRecorder() *Recorder {
	rec := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Portal API requests by operation and outcome.",
		}, []string{"op", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Portal API request latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "runs_total",
			Help:      "Conversation searches by outcome.",
		}, []string{"outcome"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Time from search start to publication or supersession.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		searchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "results",
			Help:      "Conversations matched by published searches.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		controllers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "active_controllers",
			Help:      "Users with a live chat controller.",
		}),
	}
	rec.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		rec.requests,
		rec.requestDuration,
		rec.searches,
		rec.searchDuration,
		rec.searchResults,
		rec.controllers,
	)
	return rec
}

func (rec *Recorder) ObserveRequest(op string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	rec.requests.WithLabelValues(op, outcome).Inc()
	rec.requestDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (rec *Recorder) ObserveSearch(d time.Duration, results int, superseded bool) {
	rec.searchDuration.Observe(d.Seconds())
	if superseded {
		rec.searches.WithLabelValues("superseded").Inc()
		return
	}
	rec.searches.WithLabelValues("published").Inc()
	rec.searchResults.Observe(float64(results))
}

// SetControllers reports how many chat controllers are running.
func (rec *Recorder) SetControllers(n int) {
	rec.controllers.Set(float64(n))
}

func (rec *Recorder) Registry() *prometheus.Registry {
	return rec.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (rec *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(rec.registry, promhttp.HandlerOpts{})
}
