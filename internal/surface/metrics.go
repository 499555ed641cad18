package surface

import "github.com/prometheus/client_golang/prometheus"

// Result label values of opsTotal.
const (
	resultOK      = "ok"
	resultFailed  = "failed"
	resultSkipped = "skipped"
)

var (
	opsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowdesigner",
		Subsystem: "surface",
		Name:      "ops_total",
		Help:      "Total number of render surface operations by result.",
	}, []string{"op", "result"})

	opsQueued = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "flowdesigner",
		Subsystem: "surface",
		Name:      "ops_queued",
		Help:      "Number of operations waiting for a render surface to become ready.",
	})

	queueWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "flowdesigner",
		Subsystem: "surface",
		Name:      "queue_wait_seconds",
		Help:      "Time operations spent queued before the surface was ready.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	})
)

func init() {
	prometheus.MustRegister(
		opsTotal,
		opsQueued,
		queueWait,
	)
}
