package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP Request Metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// WebSocket Metrics
	websocketConnections   prometheus.Gauge
	websocketMessagesTotal *prometheus.CounterVec
	websocketErrorsTotal   *prometheus.CounterVec

	// Call Metrics
	callsTotal        *prometheus.CounterVec
	callsActive       prometheus.Gauge
	callTransitions   *prometheus.CounterVec
	callRingDurations prometheus.Histogram

	// Signaling Metrics
	signalsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(serviceName string) *Metrics {
	labels := prometheus.Labels{"service": serviceName}

	return &Metrics{
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: labels,
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "HTTP request latency in seconds",
				ConstLabels: labels,
				Buckets:     prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		httpRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name:        "http_requests_in_flight",
				Help:        "Number of HTTP requests currently being processed",
				ConstLabels: labels,
			},
		),
		websocketConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name:        "websocket_connections",
				Help:        "Number of active WebSocket signaling connections",
				ConstLabels: labels,
			},
		),
		websocketMessagesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "websocket_messages_total",
				Help:        "Total number of WebSocket signaling messages",
				ConstLabels: labels,
			},
			[]string{"type"},
		),
		websocketErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "websocket_errors_total",
				Help:        "Total number of WebSocket errors",
				ConstLabels: labels,
			},
			[]string{"reason"},
		),
		callsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "calls_total",
				Help:        "Total number of initiated calls",
				ConstLabels: labels,
			},
			[]string{"call_type"},
		),
		callsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name:        "calls_active",
				Help:        "Number of calls currently not in a terminal state",
				ConstLabels: labels,
			},
		),
		callTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "call_transitions_total",
				Help:        "Total number of call state transitions",
				ConstLabels: labels,
			},
			[]string{"to_status"},
		),
		callRingDurations: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:        "call_ring_duration_seconds",
				Help:        "Time between call initiation and first transition",
				ConstLabels: labels,
				Buckets:     []float64{1, 2, 5, 10, 20, 30, 45, 60},
			},
		),
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "signals_total",
				Help:        "Total number of relayed signaling payloads",
				ConstLabels: labels,
			},
			[]string{"kind", "transport"},
		),
	}
}

// RecordHTTPRequest records a completed HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments the in-flight request gauge
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.httpRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements the in-flight request gauge
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.httpRequestsInFlight.Dec()
}

// IncrementWebsocketConnections increments the connection gauge
func (m *Metrics) IncrementWebsocketConnections() {
	m.websocketConnections.Inc()
}

// DecrementWebsocketConnections decrements the connection gauge
func (m *Metrics) DecrementWebsocketConnections() {
	m.websocketConnections.Dec()
}

// RecordWebsocketMessage records a handled WebSocket message
func (m *Metrics) RecordWebsocketMessage(messageType string) {
	m.websocketMessagesTotal.WithLabelValues(messageType).Inc()
}

// RecordWebsocketError records a WebSocket failure
func (m *Metrics) RecordWebsocketError(reason string) {
	m.websocketErrorsTotal.WithLabelValues(reason).Inc()
}

// RecordCallInitiated records a new call and marks it active
func (m *Metrics) RecordCallInitiated(callType string) {
	m.callsTotal.WithLabelValues(callType).Inc()
	m.callsActive.Inc()
}

// RecordCallTransition records a state transition; terminal transitions
// release the active gauge
func (m *Metrics) RecordCallTransition(toStatus string, terminal bool, ringDuration time.Duration) {
	m.callTransitions.WithLabelValues(toStatus).Inc()
	if terminal {
		m.callsActive.Dec()
	}
	if ringDuration > 0 {
		m.callRingDurations.Observe(ringDuration.Seconds())
	}
}

// RecordSignal records one relayed signaling payload
func (m *Metrics) RecordSignal(kind, transport string) {
	m.signalsTotal.WithLabelValues(kind, transport).Inc()
}
