// Package metrics exposes the shell's Prometheus collectors.
//
// Every method is safe to call on a nil *Metrics, so components can take an
// optional collector without guarding each call site.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/specialistvlad/propshell/internal/shellerr"
)

const namespace = "propshell"

// Metrics groups the collectors of one application instance.
type Metrics struct {
	registry *prometheus.Registry

	commands      *prometheus.CounterVec
	batches       *prometheus.CounterVec
	batchDuration prometheus.Histogram
	propagations  prometheus.Counter
	cycles        prometheus.Counter
	objects       prometheus.Gauge
	bindings      prometheus.Gauge
	posts         prometheus.Counter
}

// New creates the collectors on a private registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands executed, by verb and result code.",
		}, []string{"verb", "code"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Command batches executed, by origin and outcome.",
		}, []string{"origin", "outcome"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Time spent executing one command batch.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		propagations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "binding_propagations_total",
			Help:      "Values pushed along a binding.",
		}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "binding_cycles_total",
			Help:      "Propagations aborted because they revisited a property.",
		}),
		objects: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "objects",
			Help:      "Live objects.",
		}),
		bindings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bindings",
			Help:      "Registered bindings.",
		}),
		posts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "async_updates_total",
			Help:      "Asynchronous updates posted by objects.",
		}),
	}

	m.registry.MustRegister(
		m.commands, m.batches, m.batchDuration, m.propagations,
		m.cycles, m.objects, m.bindings, m.posts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Command records one executed command. A nil err is recorded as "ok".
func (m *Metrics) Command(verb string, err error) {
	if m == nil {
		return
	}
	code := "ok"
	if err != nil {
		code = shellerr.Code(err)
	}
	m.commands.WithLabelValues(verb, code).Inc()
}

// Batch records one executed batch and how long it took.
func (m *Metrics) Batch(origin string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.batches.WithLabelValues(origin, outcome).Inc()
	m.batchDuration.Observe(d.Seconds())
}

// Propagation records a value pushed along a binding.
func (m *Metrics) Propagation() {
	if m == nil {
		return
	}
	m.propagations.Inc()
}

// Cycle records an aborted propagation.
func (m *Metrics) Cycle() {
	if m == nil {
		return
	}
	m.cycles.Inc()
}

// Post records an asynchronous update.
func (m *Metrics) Post() {
	if m == nil {
		return
	}
	m.posts.Inc()
}

// SetObjects sets the live object gauge.
func (m *Metrics) SetObjects(n int) {
	if m == nil {
		return
	}
	m.objects.Set(float64(n))
}

// SetBindings sets the binding gauge.
func (m *Metrics) SetBindings(n int) {
	if m == nil {
		return
	}
	m.bindings.Set(float64(n))
}
