package metric

import "github.com/prometheus/client_golang/prometheus"

// SizeSource reports on-disk sizes of the storage engine.
type SizeSource interface {
	// Size returns the LSM tree and value log sizes in bytes.
	Size() (lsm, vlog int64)
}

// Collector exposes storage engine sizes, read at scrape time.
type Collector struct {
	source SizeSource

	lsmSize  *prometheus.Desc
	vlogSize *prometheus.Desc
}

// NewCollector creates a collector reading from source.
func NewCollector(source SizeSource) *Collector {
	return &Collector{
		source: source,
		lsmSize: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "badger", "lsm_size_bytes"),
			"Badger LSM tree size in bytes", nil, nil),
		vlogSize: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "badger", "value_log_size_bytes"),
			"Badger value log size in bytes", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.lsmSize
	ch <- c.vlogSize
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	lsm, vlog := c.source.Size()
	ch <- prometheus.MustNewConstMetric(c.lsmSize, prometheus.GaugeValue, float64(lsm))
	ch <- prometheus.MustNewConstMetric(c.vlogSize, prometheus.GaugeValue, float64(vlog))
}
