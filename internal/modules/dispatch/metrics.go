// README: Prometheus instruments for the message queue and order dispatcher.
package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"driverbot/internal/modules/order"
)

type Metrics struct {
	enqueued     prometheus.Counter
	outcomes     *prometheus.CounterVec
	pending      prometheus.Gauge
	batchSize    prometheus.Histogram
	sendDuration prometheus.Histogram
	workerErrors prometheus.Counter
	orders       *prometheus.CounterVec
	candidates   prometheus.Histogram
}

// NewMetrics registers on reg; a nil reg yields working but unregistered instruments.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		enqueued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "queue", Name: "enqueued_total",
			Help: "Notification tasks added to the queue.",
		}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "queue", Name: "send_outcomes_total",
			Help: "Send attempts by outcome (delivered, retried, dropped).",
		}, []string{"outcome"}),
		pending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "queue", Name: "pending",
			Help: "Tasks waiting to be pulled.",
		}),
		batchSize: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "queue", Name: "batch_size",
			Help:    "Tasks per dispatched batch.",
			Buckets: []float64{1, 2, 3, 5, 10, 20, 50},
		}),
		sendDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "queue", Name: "send_duration_seconds",
			Help:    "Latency of a single chat send.",
			Buckets: prometheus.DefBuckets,
		}),
		workerErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "queue", Name: "worker_errors_total",
			Help: "Unexpected worker failures that triggered a pause.",
		}),
		orders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "dispatch", Name: "orders_total",
			Help: "Inbound order events by dispatch action.",
		}, []string{"action"}),
		candidates: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "dispatch", Name: "candidates",
			Help:    "Drivers notified per fanned-out order.",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
	}
}

const (
	outcomeDelivered = "delivered"
	outcomeRetried   = "retried"
	outcomeDropped   = "dropped"
	actionInvalid    = "invalid"
)

func (m *Metrics) order(a order.Action) {
	m.orders.WithLabelValues(string(a)).Inc()
}
