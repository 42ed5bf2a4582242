// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

// Package metrics provides Prometheus instrumentation for ingestion,
// the telemetry buffer, the anomaly poller, alert lifecycle, notification
// delivery, and the HTTP API. Metrics are registered with the default
// registry and exposed at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion and buffer metrics.
	PingsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wayfarer_pings_ingested_total",
			Help: "Total number of location pings accepted into the buffer",
		},
	)

	PingsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wayfarer_pings_rejected_total",
			Help: "Total number of location pings rejected by validation",
		},
	)

	BufferEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wayfarer_buffer_evictions_total",
			Help: "Total number of pings evicted from the full telemetry buffer",
		},
	)

	BufferSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wayfarer_buffer_size",
			Help: "Current number of pings held in the telemetry buffer",
		},
	)

	// Detection poller metrics.
	DetectionCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wayfarer_detection_cycles_total",
			Help: "Total number of completed detection cycles",
		},
	)

	DetectionCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wayfarer_detection_cycle_duration_seconds",
			Help:    "Duration of detection cycles in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	DetectionSkippedTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wayfarer_detection_skipped_ticks_total",
			Help: "Total number of poll ticks skipped because a cycle was still running",
		},
	)

	DetectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wayfarer_detection_errors_total",
			Help: "Total number of detection cycle errors",
		},
		[]string{"stage"}, // snapshot, store
	)

	// Alert lifecycle metrics.
	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wayfarer_alerts_created_total",
			Help: "Total number of alerts created",
		},
		[]string{"type", "severity"},
	)

	AlertsAcknowledged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wayfarer_alerts_acknowledged_total",
			Help: "Total number of alerts acknowledged",
		},
	)

	NotifyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wayfarer_notify_failures_total",
			Help: "Total number of alert notification delivery failures",
		},
		[]string{"notifier"},
	)

	// API metrics.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wayfarer_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wayfarer_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wayfarer_api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	// WebSocket metrics.
	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wayfarer_websocket_clients",
			Help: "Current number of connected websocket clients",
		},
	)

	// Mobile panic reporter metrics.
	PanicReportAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wayfarer_panic_report_attempts_total",
			Help: "Total number of outbound panic report attempts",
		},
		[]string{"outcome"}, // success, failure, rejected
	)

	// Circuit breaker metrics.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wayfarer_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wayfarer_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

// RecordPingIngested increments the accepted ping counter.
func RecordPingIngested() {
	PingsIngested.Inc()
}

// RecordPingRejected increments the rejected ping counter.
func RecordPingRejected() {
	PingsRejected.Inc()
}

// RecordBufferEviction increments the eviction counter.
func RecordBufferEviction() {
	BufferEvictions.Inc()
}

// SetBufferSize updates the buffer size gauge.
func SetBufferSize(size int) {
	BufferSize.Set(float64(size))
}

// RecordDetectionCycle records a completed detection cycle and its duration.
func RecordDetectionCycle(duration time.Duration) {
	DetectionCycles.Inc()
	DetectionCycleDuration.Observe(duration.Seconds())
}

// RecordSkippedTick increments the skipped tick counter.
func RecordSkippedTick() {
	DetectionSkippedTicks.Inc()
}

// RecordDetectionError increments the detection error counter for a stage.
func RecordDetectionError(stage string) {
	DetectionErrors.WithLabelValues(stage).Inc()
}

// RecordAlertCreated increments the alert creation counter.
func RecordAlertCreated(alertType, severity string) {
	AlertsCreated.WithLabelValues(alertType, severity).Inc()
}

// RecordAlertAcknowledged increments the acknowledgment counter.
func RecordAlertAcknowledged() {
	AlertsAcknowledged.Inc()
}

// RecordNotifyFailure increments the notification failure counter.
func RecordNotifyFailure(notifier string) {
	NotifyFailures.WithLabelValues(notifier).Inc()
}

// RecordAPIRequest records a completed API request.
func RecordAPIRequest(method, path, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, path, status).Inc()
	APIRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// SetWebsocketClients updates the connected client gauge.
func SetWebsocketClients(count int) {
	WebsocketClients.Set(float64(count))
}

// RecordPanicReport records an outbound panic report attempt outcome.
func RecordPanicReport(outcome string) {
	PanicReportAttempts.WithLabelValues(outcome).Inc()
}

// SetCircuitBreakerState updates the breaker state gauge for a named breaker.
func SetCircuitBreakerState(name string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
}

// RecordCircuitBreakerTransition counts a breaker state transition.
func RecordCircuitBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}
