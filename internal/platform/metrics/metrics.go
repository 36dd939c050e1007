package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "paycore"

// Collector owns a private registry so tests can build as many as they need.
type Collector struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	bulletins        *prometheus.CounterVec
	bulletinDuration prometheus.Histogram
	defaulted        *prometheus.CounterVec
	runs             *prometheus.CounterVec
	queueDepth       prometheus.Gauge
}

func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Collector{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by status code.",
		}, []string{"status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"class"}),
		bulletins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "bulletins_total",
			Help:      "Bulletin computations by outcome.",
		}, []string{"outcome"}),
		bulletinDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "bulletin_duration_seconds",
			Help:      "Time spent computing one bulletin once its parameters are loaded.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		defaulted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "parameters_defaulted_total",
			Help:      "Parameters replaced by their statutory default.",
		}, []string{"code"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Batch runs by final status.",
		}, []string{"status"}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "queue_depth",
			Help:      "Batch runs waiting for a worker.",
		}),
	}
}

// Record counts one HTTP request.
func (c *Collector) Record(status int, duration time.Duration) {
	c.requests.WithLabelValues(strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(statusClass(status)).Observe(duration.Seconds())
}

func (c *Collector) ObserveBulletin(outcome string, duration time.Duration) {
	c.bulletins.WithLabelValues(outcome).Inc()
	if duration > 0 {
		c.bulletinDuration.Observe(duration.Seconds())
	}
}

func (c *Collector) ParameterDefaulted(code string) {
	c.defaulted.WithLabelValues(code).Inc()
}

func (c *Collector) RunFinished(status string) {
	c.runs.WithLabelValues(status).Inc()
}

func (c *Collector) SetQueueDepth(n int) {
	c.queueDepth.Set(float64(n))
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
