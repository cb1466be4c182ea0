package receipt

import "github.com/prometheus/client_golang/prometheus"

// Metrics is a Publisher that exports batch outcomes to Prometheus
type Metrics struct {
	items   *prometheus.CounterVec
	batches prometheus.Counter
}

// NewMetrics registers the pipeline metrics. inFlight backs the in-flight gauge.
func NewMetrics(reg prometheus.Registerer, inFlight func() bool) *Metrics {
	m := &Metrics{
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "receipt_pipeline",
			Name:      "items_total",
			Help:      "Processed receipt images by terminal outcome.",
		}, []string{"outcome"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "receipt_pipeline",
			Name:      "batches_total",
			Help:      "Completed batches.",
		}),
	}

	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "receipt_pipeline",
		Name:      "batch_in_flight",
		Help:      "1 while a batch is being processed.",
	}, func() float64 {
		if inFlight() {
			return 1
		}
		return 0
	})

	reg.MustRegister(m.items, m.batches, gauge)
	return m
}

func (m *Metrics) StateChanged(string, []State) {}

func (m *Metrics) BatchDone(_ string, snapshot []State) {
	for _, state := range snapshot {
		m.items.WithLabelValues(string(state.Outcome)).Inc()
	}
	m.batches.Inc()
}
