// Package metrics holds the Prometheus collectors of the marketplace.
// All methods are safe on a nil *Metrics, which disables recording.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the marketplace collectors.
type Metrics struct {
	operations    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	tradeVolume   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	swept         prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bazaar",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Engine operations by outcome.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bazaar",
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Engine operation latency, gateway calls included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		tradeVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bazaar",
			Name:      "trade_volume_total",
			Help:      "Currency moved by completed trades.",
		}, []string{"op"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bazaar",
			Name:      "notifications_total",
			Help:      "Notifications by path: delivered, stored or flushed.",
		}, []string{"path"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bazaar",
			Name:      "notifications_swept_total",
			Help:      "Notifications removed by the retention sweep.",
		}),
	}

	reg.MustRegister(m.operations, m.duration, m.tradeVolume, m.notifications, m.swept)
	return m
}

// ObserveOperation records one engine call.
func (m *Metrics) ObserveOperation(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

// AddTradeVolume adds the total of a completed buy or sell.
func (m *Metrics) AddTradeVolume(op string, amount float64) {
	if m == nil {
		return
	}
	m.tradeVolume.WithLabelValues(op).Add(amount)
}

// Notification counts one notification taking path.
func (m *Metrics) Notification(path string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(path).Inc()
}

// Swept counts notifications removed by a sweep.
func (m *Metrics) Swept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.swept.Add(float64(n))
}

// OperationCount returns the collector for tests and dashboards.
func (m *Metrics) OperationCount(op, outcome string) prometheus.Counter {
	return m.operations.WithLabelValues(op, outcome)
}

// NotificationCount returns the notification counter for path.
func (m *Metrics) NotificationCount(path string) prometheus.Counter {
	return m.notifications.WithLabelValues(path)
}
