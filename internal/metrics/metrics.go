// Package metrics holds the process-wide Prometheus metric set. Labels are
// bounded: reasons and layer names come from fixed sets, never from ids.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync metrics
	messagesApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_messages_applied_total",
		Help: "Inbound sync messages applied to a session snapshot",
	}, []string{"type"}) // Bounded: state_sync, tick, complete, error, auto_play_started, auto_play_stopped

	messagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_messages_dropped_total",
		Help: "Inbound sync messages dropped",
	}, []string{"reason"}) // Bounded: malformed, stale, unknown, closed

	tickGaps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sync_tick_gaps_total",
		Help: "Ticks applied after one or more missing ticks",
	})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sync_sessions_active",
		Help: "Currently open simulation sessions",
	})

	transportErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_transport_errors_total",
		Help: "Connection failures by operation",
	}, []string{"op"}) // Bounded: dial, read, write

	commandsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_commands_sent_total",
		Help: "Commands sent to the simulation",
	}, []string{"type"})

	// Render metrics
	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "render_duration_seconds",
		Help:    "Time spent rendering a frame",
		Buckets: []float64{0.001, 0.005, 0.01, 0.02, 0.033, 0.05, 0.1},
	})

	overlaysSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "render_overlays_skipped_total",
		Help: "Overlay elements skipped because they referenced a missing entity",
	}, []string{"layer"})

	catchEffects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "render_catch_effects_total",
		Help: "Catch effects spawned",
	})

	// HTTP metrics with bounded labels
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is the route pattern, not the URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "ws_limit"

	// WebSocket hub metrics
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active host WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total host WebSocket messages sent",
	})
)

// RecordApplied counts one applied sync message.
func RecordApplied(msgType string) {
	messagesApplied.WithLabelValues(msgType).Inc()
}

// RecordDropped counts one dropped sync message.
func RecordDropped(reason string) {
	messagesDropped.WithLabelValues(reason).Inc()
}

// RecordGap counts a tick applied after a gap.
func RecordGap() {
	tickGaps.Inc()
}

// SessionOpened increments the active session gauge.
func SessionOpened() {
	activeSessions.Inc()
}

// SessionClosed decrements the active session gauge.
func SessionClosed() {
	activeSessions.Dec()
}

// RecordTransportError counts a connection failure. op is dial, read or write.
func RecordTransportError(op string) {
	transportErrors.WithLabelValues(op).Inc()
}

// RecordCommand counts an outbound command.
func RecordCommand(cmdType string) {
	commandsSent.WithLabelValues(cmdType).Inc()
}

// RecordRender records render timing.
func RecordRender(duration time.Duration) {
	renderDuration.Observe(duration.Seconds())
}

// RecordSkipped counts overlay elements skipped in one frame.
func RecordSkipped(layer string, n int) {
	if n > 0 {
		overlaysSkipped.WithLabelValues(layer).Add(float64(n))
	}
}

// RecordCatchEffect counts a spawned catch effect.
func RecordCatchEffect() {
	catchEffects.Inc()
}

// RecordRequest records HTTP request metrics.
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// RecordConnectionRejected increments the rejection counter.
// reason must be one of: "rate_limit", "origin", "ws_limit"
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// UpdateWSConnections updates the WebSocket connection count.
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments the WebSocket message counter.
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}
