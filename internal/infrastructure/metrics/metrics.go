package metrics

import (
	"net/http"
	"strings"

	"github.com/garyjia/tradeflow/internal/domain/event"
	"github.com/garyjia/tradeflow/internal/domain/workflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tradeflow"

// Metrics holds the service's prometheus collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	resolutionsTotal  *prometheus.CounterVec
	transitionsTotal  *prometheus.CounterVec
	handlerRunsTotal  *prometheus.CounterVec
	permissionLoads   prometheus.Counter
	openSessions      prometheus.Gauge
	templatesImported prometheus.Counter
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		resolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_resolutions_total",
				Help:      "Stage resolutions by outcome and render mode",
			},
			[]string{"outcome", "render_mode"},
		),
		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "status_transitions_total",
				Help:      "Lifecycle events by type and product",
			},
			[]string{"type", "product"},
		),
		handlerRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "event_handler_runs_total",
				Help:      "Event handler executions by event type and result",
			},
			[]string{"type", "result"},
		),
		permissionLoads: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "permission_loads_total",
				Help:      "Successful permission snapshot loads",
			},
		),
		openSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "lifecycle_sessions_open",
				Help:      "Lifecycle sessions currently held in memory",
			},
		),
		templatesImported: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "templates_imported_total",
				Help:      "Workflow templates written by imports",
			},
		),
	}

	m.registry.MustRegister(
		m.resolutionsTotal,
		m.transitionsTotal,
		m.handlerRunsTotal,
		m.permissionLoads,
		m.openSessions,
		m.templatesImported,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveResolution counts one resolver result
func (m *Metrics) ObserveResolution(target workflow.ResolvedTarget) {
	m.resolutionsTotal.WithLabelValues(string(target.Outcome), target.UIRenderMode).Inc()
}

// ObserveHandler counts one dispatcher handler execution
func (m *Metrics) ObserveHandler(evt *event.Event, handlerName string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.handlerRunsTotal.WithLabelValues(string(evt.Type), result).Inc()
}

// RecordEvent counts a lifecycle event; registered as a dispatcher handler
func (m *Metrics) RecordEvent(evt *event.Event) {
	product := strings.ToUpper(evt.GetPayloadString(event.KeyProductCode))
	m.transitionsTotal.WithLabelValues(string(evt.Type), product).Inc()

	switch evt.Type {
	case event.TypePermissionsLoaded:
		m.permissionLoads.Inc()
	case event.TypeTemplatesImported:
		m.templatesImported.Add(float64(evt.GetPayloadInt(event.KeyCount)))
	}
}

// SetOpenSessions sets the open lifecycle session gauge
func (m *Metrics) SetOpenSessions(n int) {
	m.openSessions.Set(float64(n))
}
