// Package metrics exposes flowatch's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rzbill/flowatch/internal/dispatch"
	pebblestore "github.com/rzbill/flowatch/internal/storage/pebble"
)

const namespace = "flowatch"

// Metrics owns a private registry so tests and embedders never collide with
// the global default registry.
type Metrics struct {
	reg *prometheus.Registry

	delivered         *prometheus.CounterVec
	callbackErrors    *prometheus.CounterVec
	persistenceErrors *prometheus.CounterVec
	saveSeconds       *prometheus.HistogramVec
	droppedErrors     *prometheus.CounterVec

	storeSeconds *prometheus.HistogramVec
	storeBytes   *prometheus.CounterVec
}

var (
	_ dispatch.Observer       = (*Metrics)(nil)
	_ pebblestore.MetricsHook = (*Metrics)(nil)
)

// New registers all collectors plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "dispatch", Name: "records_delivered_total",
			Help: "Records that completed the callback chain.",
		}, []string{"tag"}),
		callbackErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "dispatch", Name: "callback_errors_total",
			Help: "User actions that failed or panicked.",
		}, []string{"tag"}),
		persistenceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "dispatch", Name: "persistence_errors_total",
			Help: "Position saves that failed.",
		}, []string{"tag"}),
		saveSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "bookmark", Name: "save_seconds",
			Help:    "Latency of position saves.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"tag"}),
		droppedErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "subscription", Name: "dropped_errors_total",
			Help: "Error notifications dropped because the subscription channel was full.",
		}, []string{"tag"}),
		storeSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "store", Name: "op_seconds",
			Help:    "Pebble operation latency.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
		}, []string{"op"}),
		storeBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "store", Name: "bytes_total",
			Help: "Bytes moved by Pebble operations.",
		}, []string{"op"}),
	}
	m.reg.MustRegister(
		m.delivered, m.callbackErrors, m.persistenceErrors, m.saveSeconds, m.droppedErrors,
		m.storeSeconds, m.storeBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) ObserveDelivered(tag string)        { m.delivered.WithLabelValues(tag).Inc() }
func (m *Metrics) ObserveCallbackError(tag string)    { m.callbackErrors.WithLabelValues(tag).Inc() }
func (m *Metrics) ObservePersistenceError(tag string) { m.persistenceErrors.WithLabelValues(tag).Inc() }
func (m *Metrics) ObserveDroppedError(tag string)     { m.droppedErrors.WithLabelValues(tag).Inc() }

func (m *Metrics) ObserveSave(tag string, elapsed time.Duration) {
	m.saveSeconds.WithLabelValues(tag).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveWrite(elapsed time.Duration, bytes int) { m.observeStore("write", elapsed, bytes) }
func (m *Metrics) ObserveRead(elapsed time.Duration, bytes int)  { m.observeStore("read", elapsed, bytes) }

func (m *Metrics) ObserveBatchCommit(elapsed time.Duration, _ int, bytes int) {
	m.observeStore("commit", elapsed, bytes)
}

func (m *Metrics) observeStore(op string, elapsed time.Duration, bytes int) {
	m.storeSeconds.WithLabelValues(op).Observe(elapsed.Seconds())
	m.storeBytes.WithLabelValues(op).Add(float64(bytes))
}
