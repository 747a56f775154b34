// Package metrics exposes Prometheus counters for the auth flows.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Mail delivery outcomes.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Collector records auth request outcomes and mail deliveries.
type Collector struct {
	requests *prometheus.CounterVec
	mail     *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailauth_auth_requests_total",
			Help: "Auth operations by outcome code.",
		}, []string{"operation", "outcome"}),
		mail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailauth_mail_sent_total",
			Help: "Outgoing emails by kind and delivery status.",
		}, []string{"kind", "status"}),
	}

	reg.MustRegister(c.requests, c.mail)
	return c
}

// RecordRequest counts one auth operation. outcome is "ok" or an error code.
func (c *Collector) RecordRequest(operation, outcome string) {
	c.requests.WithLabelValues(operation, outcome).Inc()
}

// RecordMail counts one delivery attempt.
func (c *Collector) RecordMail(kind string, err error) {
	status := StatusSent
	if err != nil {
		status = StatusFailed
	}
	c.mail.WithLabelValues(kind, status).Inc()
}

// NewRegistry returns a private registry carrying the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
