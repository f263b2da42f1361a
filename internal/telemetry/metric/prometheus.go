package metric

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fieldstore"

// Registry holds all application metrics.
//
// Every recording method is safe on a nil *Registry so components can run
// without metrics (CLI, tests).
type Registry struct {
	registry *prometheus.Registry

	// Store metrics
	Mutations           *prometheus.CounterVec
	MetaVersion         *prometheus.GaugeVec
	TransactionDuration *prometheus.HistogramVec

	// Sync and backup metrics
	SnapshotImports *prometheus.CounterVec
	BackupOps       *prometheus.CounterVec

	// Lifecycle metrics
	SweepRuns        prometheus.Counter
	SweepTransitions *prometheus.CounterVec

	// Notification metrics
	ChangeEvents *prometheus.CounterVec
}

// NewRegistry creates a registry with the Go and process collectors and
// all store metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Store transactions by entity family and result (committed, noop, failed)",
		}, []string{"family", "result"}),
		MetaVersion: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "meta_version",
			Help:      "Latest meta version per entity family",
		}, []string{"family"}),
		TransactionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transaction_duration_seconds",
			Help:      "Write transaction latency per entity family",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"family"}),
		SnapshotImports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_imports_total",
			Help:      "Snapshot imports by family and result (applied, stale-version)",
		}, []string{"family", "result"}),
		BackupOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backup_operations_total",
			Help:      "Backup exports and imports by scope",
		}, []string{"operation", "scope"}),
		SweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Expiration sweeps executed",
		}),
		SweepTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_transitions_total",
			Help:      "Orders changed by the expiration sweep (expired, restored)",
		}, []string{"transition"}),
		ChangeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_events_total",
			Help:      "Change events by family and channel (local, broadcast, received)",
		}, []string{"family", "channel"}),
	}

	reg.MustRegister(
		r.Mutations,
		r.MetaVersion,
		r.TransactionDuration,
		r.SnapshotImports,
		r.BackupOps,
		r.SweepRuns,
		r.SweepTransitions,
		r.ChangeEvents,
	)
	return r
}

var (
	globalOnce     sync.Once
	globalRegistry *Registry
)

// Global returns the process-wide registry, created on first use.
func Global() *Registry {
	globalOnce.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

// Handler returns an HTTP handler for the global registry.
func Handler() http.Handler {
	return Global().Handler()
}

// Handler returns an HTTP handler exposing this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// MustRegister registers additional collectors (e.g. the storage collector).
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.registry.MustRegister(cs...)
}

// RecordMutation counts one write transaction.
func (r *Registry) RecordMutation(family, result string) {
	if r == nil {
		return
	}
	r.Mutations.WithLabelValues(family, result).Inc()
}

// SetMetaVersion publishes the latest meta version of family.
func (r *Registry) SetMetaVersion(family string, version uint64) {
	if r == nil {
		return
	}
	r.MetaVersion.WithLabelValues(family).Set(float64(version))
}

// ObserveTransaction records write transaction latency in seconds.
func (r *Registry) ObserveTransaction(family string, seconds float64) {
	if r == nil {
		return
	}
	r.TransactionDuration.WithLabelValues(family).Observe(seconds)
}

// RecordSnapshotImport counts one snapshot import attempt.
func (r *Registry) RecordSnapshotImport(family, result string) {
	if r == nil {
		return
	}
	r.SnapshotImports.WithLabelValues(family, result).Inc()
}

// RecordBackup counts one backup export or import.
func (r *Registry) RecordBackup(operation, scope string) {
	if r == nil {
		return
	}
	r.BackupOps.WithLabelValues(operation, scope).Inc()
}

// RecordSweep counts one sweep and the orders it expired and restored.
func (r *Registry) RecordSweep(expired, restored int) {
	if r == nil {
		return
	}
	r.SweepRuns.Inc()
	r.SweepTransitions.WithLabelValues("expired").Add(float64(expired))
	r.SweepTransitions.WithLabelValues("restored").Add(float64(restored))
}

// RecordChangeEvent counts one change event on a channel.
func (r *Registry) RecordChangeEvent(family, channel string) {
	if r == nil {
		return
	}
	r.ChangeEvents.WithLabelValues(family, channel).Inc()
}
