// Package metric provides Prometheus metrics for the field store.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: Prometheus registry, store metrics and HTTP handler
//   - collector.go: custom collector reporting storage engine sizes
//
// Metrics include:
//
//   - Committed / no-op / failed mutations per entity family
//   - Current meta version per family
//   - Snapshot import outcomes (applied, stale-version)
//   - Expiration sweep runs and order transitions
//   - Backup exports and imports
//   - Change events published and received
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
