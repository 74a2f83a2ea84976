package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tallymesh"

// Registry holds every metric the server records.
type Registry struct {
	reg *prometheus.Registry

	CounterMutations  *prometheus.CounterVec
	CounterValue      *prometheus.GaugeVec
	ActorActivations  *prometheus.CounterVec
	ActorPassivations *prometheus.CounterVec
	BroadcastFailures prometheus.Counter
	SocketsRejected   *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
}

// NewRegistry creates a registry with the process and Go runtime
// collectors plus the application metrics.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		reg: reg,
		CounterMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "counter_mutations_total",
			Help:      "Committed counter mutations by operation.",
		}, []string{"op"}),
		CounterValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "counter_value",
			Help:      "Last committed value per counter.",
		}, []string{"name"}),
		ActorActivations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actor_activations_total",
			Help:      "Actor activations by kind.",
		}, []string{"kind"}),
		ActorPassivations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actor_passivations_total",
			Help:      "Actor passivations by kind.",
		}, []string{"kind"}),
		BroadcastFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_failures_total",
			Help:      "Frames that could not be delivered to a socket.",
		}),
		SocketsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sockets_rejected_total",
			Help:      "Rejected WebSocket upgrades by reason.",
		}, []string{"reason"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}

	reg.MustRegister(
		r.CounterMutations,
		r.CounterValue,
		r.ActorActivations,
		r.ActorPassivations,
		r.BroadcastFailures,
		r.SocketsRejected,
		r.RequestDuration,
	)
	return r
}

// Register adds extra collectors, such as storage gauges.
func (r *Registry) Register(cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := r.reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Registerer exposes the underlying registerer.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.reg
}

// Gatherer exposes the underlying gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler returns the /metrics handler.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveRequest records one HTTP request.
func (r *Registry) ObserveRequest(route, code string, elapsed time.Duration) {
	r.RequestDuration.WithLabelValues(route, code).Observe(elapsed.Seconds())
}
