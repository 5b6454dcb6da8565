package monitoring

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector owns a private registry and prefixes every metric with the
// service name, so several collectors can coexist in one test binary.
type MetricsCollector struct {
	prefix   string
	registry *prometheus.Registry
	skip     map[string]struct{}

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewMetricsCollector registers the HTTP request metrics, a build info gauge
// and the Go/process collectors.
func NewMetricsCollector(serviceName, version, commit string) *MetricsCollector {
	mc := &MetricsCollector{
		prefix:   strings.ReplaceAll(serviceName, "-", "_"),
		registry: prometheus.NewRegistry(),
		skip:     map[string]struct{}{},
	}

	mc.requests = mc.NewCounter("http_requests_total", "Total number of HTTP requests", []string{"method", "endpoint", "status"})
	mc.latency = mc.NewHistogram("http_request_duration_seconds", "HTTP request duration in seconds", []string{"method", "endpoint"}, nil)
	mc.inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: mc.name("http_requests_in_flight"),
		Help: "Number of in-flight HTTP requests",
	})
	mc.registry.MustRegister(
		mc.inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mc.NewGauge("build_info", "Build information", []string{"version", "commit"}).WithLabelValues(version, commit).Set(1)

	return mc
}

func (mc *MetricsCollector) name(metric string) string {
	return mc.prefix + "_" + metric
}

// SkipPaths excludes route patterns from the HTTP request metrics. Long-lived
// routes such as WebSocket upgrades would otherwise dominate the latency histogram.
func (mc *MetricsCollector) SkipPaths(paths ...string) {
	for _, p := range paths {
		mc.skip[p] = struct{}{}
	}
}

// Registry exposes the collector's registry.
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	return mc.registry
}

// MetricsMiddleware records request count and latency by route pattern.
func (mc *MetricsCollector) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := mc.skip[c.FullPath()]; ok {
			c.Next()
			return
		}
		start := time.Now()
		mc.inFlight.Inc()
		defer mc.inFlight.Dec()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		mc.requests.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		mc.latency.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (mc *MetricsCollector) Handler() gin.HandlerFunc {
	handler := promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{})
	return gin.WrapH(handler)
}

// NewCounter registers a prefixed counter vector.
func (mc *MetricsCollector) NewCounter(name, help string, labels []string) *prometheus.CounterVec {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: mc.name(name), Help: help}, labels)
	mc.registry.MustRegister(counter)
	return counter
}

// NewGauge registers a prefixed gauge vector.
func (mc *MetricsCollector) NewGauge(name, help string, labels []string) *prometheus.GaugeVec {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: mc.name(name), Help: help}, labels)
	mc.registry.MustRegister(gauge)
	return gauge
}

// NewHistogram uses prometheus.DefBuckets when buckets is nil.
func (mc *MetricsCollector) NewHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	histogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: mc.name(name), Help: help, Buckets: buckets}, labels)
	mc.registry.MustRegister(histogram)
	return histogram
}
