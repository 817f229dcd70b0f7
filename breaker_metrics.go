package resilientclient

import "github.com/prometheus/client_golang/prometheus"

// breakerMetrics exposes a CircuitBreaker's bucket counters and current
// state as Prometheus collectors, independent of the state machine
// itself — registering a breaker with metrics never changes its
// tripping behaviour.
type breakerMetrics struct {
	successes     prometheus.Counter
	failures      prometheus.Counter
	timeouts      prometheus.Counter
	shortCircuits prometheus.Counter
	state         prometheus.Gauge
}

func newBreakerMetrics(reg prometheus.Registerer, name string) *breakerMetrics {
	if name == "" {
		name = "default"
	}
	labels := prometheus.Labels{"breaker": name}

	m := &breakerMetrics{
		successes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "resilientclient",
			Subsystem:   "breaker",
			Name:        "successes_total",
			Help:        "Number of commands the breaker charged as a success.",
			ConstLabels: labels,
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "resilientclient",
			Subsystem:   "breaker",
			Name:        "failures_total",
			Help:        "Number of commands the breaker charged as a failure.",
			ConstLabels: labels,
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "resilientclient",
			Subsystem:   "breaker",
			Name:        "timeouts_total",
			Help:        "Number of commands the breaker charged as a timeout.",
			ConstLabels: labels,
		}),
		shortCircuits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "resilientclient",
			Subsystem:   "breaker",
			Name:        "short_circuits_total",
			Help:        "Number of commands rejected while the breaker was open.",
			ConstLabels: labels,
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "resilientclient",
			Subsystem:   "breaker",
			Name:        "state",
			Help:        "Current breaker state: 0=CLOSED 1=OPEN 2=HALF_OPEN.",
			ConstLabels: labels,
		}),
	}

	reg.MustRegister(m.successes, m.failures, m.timeouts, m.shortCircuits, m.state)
	return m
}
