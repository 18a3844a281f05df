package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AlertsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensoralert_alerts_created_total",
			Help: "Total alerts created by the threshold evaluator",
		},
		[]string{"metric"},
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensoralert_deliveries_total",
			Help: "Delivery attempts by channel and outcome",
		},
		[]string{"channel", "status"},
	)

	DispatchCyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensoralert_dispatch_cycles_total",
			Help: "Completed dispatch cycles",
		},
	)

	DispatchCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sensoralert_dispatch_cycle_duration_seconds",
			Help:    "Dispatch cycle latency in seconds",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 10, 30},
		},
	)

	UnsentAlerts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sensoralert_unsent_alerts",
			Help: "Unsent alerts observed at the start of the last cycle",
		},
	)
)

// RecordDelivery keeps the label values in one place.
func RecordDelivery(channel string, ok bool) {
	status := "sent"
	if !ok {
		status = "failed"
	}
	DeliveriesTotal.WithLabelValues(channel, status).Inc()
}
