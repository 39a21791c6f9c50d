package core

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Instruments holds the Prometheus collectors of the API process.
// A nil *Instruments is valid and records nothing.
type Instruments struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	LoginAttempts       *prometheus.CounterVec
	AuthDecisions       *prometheus.CounterVec
	AuditAppendFailures prometheus.Counter
	ReportsEnqueued     prometheus.Counter
}

// NewInstruments creates and registers every collector on a private registry.
func NewInstruments() *Instruments {
	registry := prometheus.NewRegistry()
	m := &Instruments{
		Registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liana_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "liana_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liana_login_attempts_total",
				Help: "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		AuthDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liana_auth_decisions_total",
				Help: "Auth gate verdicts by result",
			},
			[]string{"result"},
		),
		AuditAppendFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "liana_audit_append_failures_total",
				Help: "Audit entries that could not be stored after a committed mutation",
			},
		),
		ReportsEnqueued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "liana_reports_enqueued_total",
				Help: "Report jobs pushed onto the pending queue",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginAttempts,
		m.AuthDecisions,
		m.AuditAppendFailures,
		m.ReportsEnqueued,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Instruments) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Middleware counts every request by matched route.
func (m *Instruments) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func (m *Instruments) loginAttempt(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

func (m *Instruments) authDecision(result string) {
	if m == nil {
		return
	}
	m.AuthDecisions.WithLabelValues(result).Inc()
}

func (m *Instruments) auditFailure() {
	if m == nil {
		return
	}
	m.AuditAppendFailures.Inc()
}

func (m *Instruments) reportEnqueued() {
	if m == nil {
		return
	}
	m.ReportsEnqueued.Inc()
}
