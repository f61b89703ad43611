// Package metrics exposes Prometheus counters for the HTTP API and background work.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shelf"

// Recorder owns a private registry and the service's collectors.
type Recorder struct {
	registry         *prometheus.Registry
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	logins           *prometheus.CounterVec
	rateLimited      *prometheus.CounterVec
	previews         *prometheus.CounterVec
	gatekeeperDenied *prometheus.CounterVec
}

// NewRecorder registers all collectors, including the Go runtime and process collectors.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	recorder := &Recorder{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_outcomes_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_blocks_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"route"}),
		previews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_preview_fetches_total",
			Help:      "Link preview fetches by result.",
		}, []string{"result"}),
		gatekeeperDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gatekeeper_denials_total",
			Help:      "Requests denied by the gatekeeper by reason.",
		}, []string{"reason"}),
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		recorder.requests,
		recorder.requestDuration,
		recorder.logins,
		recorder.rateLimited,
		recorder.previews,
		recorder.gatekeeperDenied,
	)
	return recorder
}

// Middleware counts every request by its route template.
func (r *Recorder) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		r.requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		r.requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveLogin counts a login outcome.
func (r *Recorder) ObserveLogin(outcome string) {
	r.logins.WithLabelValues(outcome).Inc()
}

// ObserveRateLimited counts a request blocked by the limiter.
func (r *Recorder) ObserveRateLimited(route string) {
	r.rateLimited.WithLabelValues(route).Inc()
}

// ObservePreview counts a link preview fetch result.
func (r *Recorder) ObservePreview(result string) {
	r.previews.WithLabelValues(result).Inc()
}

// ObserveDenied counts a gatekeeper denial.
func (r *Recorder) ObserveDenied(reason string) {
	r.gatekeeperDenied.WithLabelValues(reason).Inc()
}

// Handler serves the exposition format for the private registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
