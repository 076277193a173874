package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the realtime engine
type Metrics struct {
	// Connection metrics
	activeConnections *prometheus.GaugeVec
	connectionsTotal  *prometheus.CounterVec

	// Frame metrics
	framesReceived *prometheus.CounterVec

	// Delivery metrics
	broadcastFanout   *prometheus.HistogramVec
	deliveryFailures  prometheus.Counter
	messagesCreated   prometheus.Counter
	notificationsPush prometheus.Counter
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		activeConnections: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "diligental_active_connections",
				Help: "Current number of live WebSocket connections by stream type",
			},
			[]string{"stream"},
		),
		connectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diligental_connections_total",
				Help: "Total number of WebSocket connections accepted by stream type",
			},
			[]string{"stream"},
		),
		framesReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diligental_frames_received_total",
				Help: "Total number of inbound frames by kind",
			},
			[]string{"kind"},
		),
		broadcastFanout: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "diligental_broadcast_fanout",
				Help:    "Number of connections each event was delivered to",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
			[]string{"route"}, // "channel" or "user"
		),
		deliveryFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "diligental_delivery_failures_total",
				Help: "Total number of writes to dead handles during fan-out",
			},
		),
		messagesCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "diligental_messages_created_total",
				Help: "Total number of messages persisted and broadcast",
			},
		),
		notificationsPush: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "diligental_notifications_pushed_total",
				Help: "Total number of notifications pushed to personal streams",
			},
		),
	}
}

// RecordConnectionOpened tracks a new live connection
func (m *Metrics) RecordConnectionOpened(stream string) {
	m.activeConnections.WithLabelValues(stream).Inc()
	m.connectionsTotal.WithLabelValues(stream).Inc()
}

// RecordConnectionClosed tracks a terminated connection
func (m *Metrics) RecordConnectionClosed(stream string) {
	m.activeConnections.WithLabelValues(stream).Dec()
}

// RecordFrameReceived counts one inbound frame
func (m *Metrics) RecordFrameReceived(kind string) {
	m.framesReceived.WithLabelValues(kind).Inc()
}

// RecordFanout observes the subscriber count of one delivery
func (m *Metrics) RecordFanout(route string, count int) {
	m.broadcastFanout.WithLabelValues(route).Observe(float64(count))
}

// RecordDeliveryFailure counts a failed write during fan-out
func (m *Metrics) RecordDeliveryFailure() {
	m.deliveryFailures.Inc()
}

// RecordMessageCreated counts a committed and broadcast message
func (m *Metrics) RecordMessageCreated() {
	m.messagesCreated.Inc()
}

// RecordNotificationsPushed counts notifications pushed after a commit
func (m *Metrics) RecordNotificationsPushed(count int) {
	m.notificationsPush.Add(float64(count))
}
