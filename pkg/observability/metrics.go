package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Provisioning metrics
	ProvisioningTotal  *prometheus.CounterVec
	CompensationsTotal *prometheus.CounterVec

	// Hosted backend calls
	UpstreamRequestDuration *prometheus.HistogramVec

	// Form bridge
	FormSubmissionsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provisioner_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "provisioner_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ProvisioningTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provisioner_provisioning_total",
				Help: "Provisioning attempts by outcome",
			},
			[]string{"outcome"},
		),
		CompensationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provisioner_compensations_total",
				Help: "Compensating identity deletions by result",
			},
			[]string{"result"},
		),
		UpstreamRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "provisioner_upstream_request_duration_seconds",
				Help:    "Duration of hosted backend calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service", "operation", "status"},
		),
		FormSubmissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provisioner_form_submissions_total",
				Help: "Form submissions by status",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ProvisioningTotal,
		m.CompensationsTotal,
		m.UpstreamRequestDuration,
		m.FormSubmissionsTotal,
	)

	return m
}

// ObserveProvisioning counts one provisioning attempt
func (m *Metrics) ObserveProvisioning(outcome string) {
	if m == nil {
		return
	}
	m.ProvisioningTotal.WithLabelValues(outcome).Inc()
}

// ObserveCompensation counts one compensating delete
func (m *Metrics) ObserveCompensation(succeeded bool) {
	if m == nil {
		return
	}
	result := "deleted"
	if !succeeded {
		result = "failed"
	}
	m.CompensationsTotal.WithLabelValues(result).Inc()
}

// ObserveUpstream records the duration of one hosted backend call
func (m *Metrics) ObserveUpstream(service, operation string, status int, d time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.UpstreamRequestDuration.WithLabelValues(service, operation, label).Observe(d.Seconds())
}

// ObserveFormSubmission counts one form submission
func (m *Metrics) ObserveFormSubmission(status string) {
	if m == nil {
		return
	}
	m.FormSubmissionsTotal.WithLabelValues(status).Inc()
}

// statusRecorder wraps http.ResponseWriter to capture the status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Requests are labelled by route template so ids never become label values.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := routeTemplate(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(serveMux *http.ServeMux, gatherer prometheus.Gatherer) {
	serveMux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
