// Package metric provides Prometheus metrics for TallyMesh.
//
//   - prometheus.go: metric definitions and the /metrics handler
//   - collector.go: a pull collector for values owned by other packages
//
// Metrics are exposed at /metrics in Prometheus text format.
package metric
