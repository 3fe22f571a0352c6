package fetch

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes cache effectiveness counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	hits        prometheus.Counter
	misses      prometheus.Counter
	fetches     prometheus.Counter
	fetchErrors prometheus.Counter
	inflight    prometheus.Gauge
}

// NewMetrics creates the cache collectors and registers them with reg when it is non-nil.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Requests answered from a stored response.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Requests with no stored response for their key.",
		}),
		fetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "fetches_total",
			Help:      "Upstream fetches started.",
		}),
		fetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "fetch_errors_total",
			Help:      "Upstream fetches that settled with an error.",
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "inflight_fetches",
			Help:      "Upstream fetches currently in flight.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.hits, m.misses, m.fetches, m.fetchErrors, m.inflight)
	}
	return m
}

func (m *Metrics) hit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *Metrics) fetchStarted() {
	if m != nil {
		m.fetches.Inc()
		m.inflight.Inc()
	}
}

func (m *Metrics) fetchSettled(err error) {
	if m == nil {
		return
	}
	m.inflight.Dec()
	if err != nil {
		m.fetchErrors.Inc()
	}
}
