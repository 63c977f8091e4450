package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Common label names
const (
	LabelMethod  = "method"
	LabelRoute   = "route"
	LabelStatus  = "status"
	LabelScheme  = "scheme"
	LabelOutcome = "outcome"
	LabelGate    = "gate"
	LabelAllowed = "allowed"
)

// Collector records application metrics on its own registry
type Collector struct {
	registry *prometheus.Registry

	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	authenticationTotal *prometheus.CounterVec
	authorizationTotal  *prometheus.CounterVec
	tokensIssuedTotal   prometheus.Counter
	policyReloadsTotal  *prometheus.CounterVec
}

// NewCollector creates a collector with a fresh registry that also carries
// the Go runtime and process collectors
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_api_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{LabelMethod, LabelRoute, LabelStatus},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "order_api_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{LabelMethod, LabelRoute},
		),
		authenticationTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_api_authentication_total",
				Help: "Authentication attempts by presentation scheme and outcome",
			},
			[]string{LabelScheme, LabelOutcome},
		),
		authorizationTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_api_authorization_total",
				Help: "Role and permission checks by gate and result",
			},
			[]string{LabelGate, LabelAllowed},
		),
		tokensIssuedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "order_api_tokens_issued_total",
				Help: "Tokens minted after basic authentication",
			},
		),
		policyReloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_api_policy_reloads_total",
				Help: "Signing policy reload attempts by result",
			},
			[]string{LabelOutcome},
		),
	}
}

// RecordRequest records an HTTP request
func (c *Collector) RecordRequest(method, route string, status int, duration time.Duration) {
	c.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAuthentication records an authentication attempt. outcome is
// "success" or a failure reason.
func (c *Collector) RecordAuthentication(scheme, outcome string) {
	c.authenticationTotal.WithLabelValues(scheme, outcome).Inc()
}

// RecordAuthorization records a role or permission check
func (c *Collector) RecordAuthorization(gate string, allowed bool) {
	c.authorizationTotal.WithLabelValues(gate, strconv.FormatBool(allowed)).Inc()
}

// RecordTokenIssued counts a minted token
func (c *Collector) RecordTokenIssued() {
	c.tokensIssuedTotal.Inc()
}

// RecordPolicyReload records a reload attempt
func (c *Collector) RecordPolicyReload(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	c.policyReloadsTotal.WithLabelValues(outcome).Inc()
}

// Registry exposes the underlying registry (used by tests)
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler exposing the collector's metrics
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
