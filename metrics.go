package seenindex

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts store operations. A nil *Metrics records nothing.
type Metrics struct {
	operations   *prometheus.CounterVec
	flushes      prometheus.Counter
	flushedBytes prometheus.Counter
	filters      prometheus.Gauge
}

// NewMetrics creates the store collectors and registers them with reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seenindex",
			Name:      "operations_total",
			Help:      "Store operations by kind and result.",
		}, []string{"op", "result"}),
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seenindex",
			Name:      "flushes_total",
			Help:      "Filters written to disk.",
		}),
		flushedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seenindex",
			Name:      "flushed_bytes_total",
			Help:      "Uncompressed filter bytes written to disk.",
		}),
		filters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "seenindex",
			Name:      "filters",
			Help:      "Filters held by the store.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.flushes, m.flushedBytes, m.filters)
	}
	return m
}

func (m *Metrics) observe(op, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) observeFlush(bytes int) {
	if m == nil {
		return
	}
	m.flushes.Inc()
	m.flushedBytes.Add(float64(bytes))
}

func (m *Metrics) setFilters(n int) {
	if m == nil {
		return
	}
	m.filters.Set(float64(n))
}
