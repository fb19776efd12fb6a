package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	conversionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mlxd",
			Subsystem: "convert",
			Name:      "total",
			Help:      "Total conversion attempts by outcome",
		},
		[]string{"status"},
	)

	conversionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mlxd",
			Subsystem: "convert",
			Name:      "duration_seconds",
			Help:      "Duration of conversion subprocess runs in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	runtimeSpawnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mlxd",
			Subsystem: "runtime",
			Name:      "spawns_total",
			Help:      "Total inference runtime spawns by result",
		},
		[]string{"result"},
	)

	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mlxd",
			Subsystem: "generate",
			Name:      "total",
			Help:      "Total generation requests by outcome",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(conversionsTotal, conversionDuration, runtimeSpawnsTotal, generationsTotal)
}
