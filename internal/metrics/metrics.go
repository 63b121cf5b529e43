package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	RequestCount      *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	JobsStarted       prometheus.Counter
	JobsFinished      *prometheus.CounterVec
	JobsRejected      prometheus.Counter
	JobsInFlight      prometheus.Gauge
	StageDuration     *prometheus.HistogramVec
	DeliveryFallbacks prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		RequestCount: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yoavatar_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "yoavatar_http_request_duration_seconds",
				Help: "HTTP request duration in seconds",
			},
			[]string{"method", "endpoint"},
		),
		JobsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "yoavatar_jobs_started_total",
			Help: "Chat jobs accepted",
		}),
		JobsFinished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yoavatar_jobs_finished_total",
				Help: "Chat jobs finished, by outcome (success or error kind)",
			},
			[]string{"outcome"},
		),
		JobsRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "yoavatar_jobs_rejected_total",
			Help: "Chat jobs refused because the concurrency bound was reached",
		}),
		JobsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "yoavatar_jobs_in_flight",
			Help: "Chat jobs currently running",
		}),
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "yoavatar_stage_duration_seconds",
				Help:    "Duration of each pipeline stage",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80, 120},
			},
			[]string{"stage"},
		),
		DeliveryFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "yoavatar_delivery_fallbacks_total",
			Help: "Rendered videos served locally because remote delivery failed",
		}),
	}
}

// Register adds an extra collector, such as a gauge over the connection registry.
func (m *Metrics) Register(c prometheus.Collector) {
	if m == nil {
		return
	}
	m.reg.MustRegister(c)
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.JobsStarted.Inc()
	m.JobsInFlight.Inc()
}

func (m *Metrics) JobFinished(outcome string) {
	if m == nil {
		return
	}
	m.JobsInFlight.Dec()
	m.JobsFinished.WithLabelValues(outcome).Inc()
}

func (m *Metrics) JobRejected() {
	if m == nil {
		return
	}
	m.JobsRejected.Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) DeliveryFallback() {
	if m == nil {
		return
	}
	m.DeliveryFallbacks.Inc()
}

func (m *Metrics) ObserveRequest(method, endpoint, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestCount.WithLabelValues(method, endpoint, status).Inc()
	m.RequestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}
