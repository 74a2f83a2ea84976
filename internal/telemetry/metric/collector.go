package metric

import "github.com/prometheus/client_golang/prometheus"

// SocketCounts reports the number of open sockets per actor kind.
type SocketCounts func() map[string]int

// SocketCollector reads socket counts at scrape time so the transport
// registry does not need to push gauge updates.
type SocketCollector struct {
	counts SocketCounts
	desc   *prometheus.Desc
}

// NewSocketCollector creates a collector backed by fn.
func NewSocketCollector(fn SocketCounts) *SocketCollector {
	return &SocketCollector{
		counts: fn,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "sockets_active"),
			"Open WebSocket connections by actor kind.",
			[]string{"kind"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *SocketCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *SocketCollector) Collect(ch chan<- prometheus.Metric) {
	for kind, n := range c.counts() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(n), kind)
	}
}
