// Package observability exposes Prometheus metrics for approval transitions.
package observability

import (
	"errors"
	"net/http"
	"time"

	"github.com/garyjia/approval-flow/internal/application/dispatcher"
	"github.com/garyjia/approval-flow/internal/application/service"
	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/garyjia/approval-flow/internal/domain/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the approval metrics on a custom registry.
type Metrics struct {
	Registry *prometheus.Registry

	TransitionsTotal *prometheus.CounterVec
	BulkItemsTotal   *prometheus.CounterVec

	HandlerExecutionsTotal   *prometheus.CounterVec
	HandlerExecutionDuration *prometheus.HistogramVec
}

// NewMetrics creates Metrics with every collector registered.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "approval_flow",
			Subsystem: "workflow",
			Name:      "transitions_total",
			Help:      "Approve and reject attempts by outcome.",
		}, []string{"entity_type", "action", "outcome"}),

		BulkItemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "approval_flow",
			Subsystem: "bulk",
			Name:      "items_total",
			Help:      "Entities processed by bulk operations.",
		}, []string{"action", "result"}),

		HandlerExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "approval_flow",
			Subsystem: "dispatcher",
			Name:      "handler_executions_total",
			Help:      "Event handler executions by status.",
		}, []string{"event_type", "handler", "status"}),

		HandlerExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "approval_flow",
			Subsystem: "dispatcher",
			Name:      "handler_duration_seconds",
			Help:      "Event handler duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"event_type", "handler"}),
	}

	reg.MustRegister(
		m.TransitionsTotal,
		m.BulkItemsTotal,
		m.HandlerExecutionsTotal,
		m.HandlerExecutionDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// RecordTransition implements service.TransitionRecorder.
func (m *Metrics) RecordTransition(entityType string, action entity.Action, outcome string) {
	m.TransitionsTotal.WithLabelValues(entityType, action.String(), outcome).Inc()
}

// RecordBulkItem implements service.BulkRecorder.
func (m *Metrics) RecordBulkItem(action entity.Action, succeeded bool) {
	result := "failed"
	if succeeded {
		result = "succeeded"
	}
	m.BulkItemsTotal.WithLabelValues(action.String(), result).Inc()
}

// ObserveHandler implements dispatcher.Observer.
func (m *Metrics) ObserveHandler(eventType event.Type, handler string, elapsed time.Duration, err error) {
	status := "success"
	switch {
	case errors.Is(err, dispatcher.ErrHandlerPanic):
		status = "panic"
	case err != nil:
		status = "error"
	}
	m.HandlerExecutionsTotal.WithLabelValues(eventType.String(), handler, status).Inc()
	m.HandlerExecutionDuration.WithLabelValues(eventType.String(), handler).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

var (
	_ service.TransitionRecorder = (*Metrics)(nil)
	_ service.BulkRecorder       = (*Metrics)(nil)
	_ dispatcher.Observer        = (*Metrics)(nil)
)
