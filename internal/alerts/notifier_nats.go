// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

package alerts

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
)

// NATSNotifier publishes created alerts to a NATS subject so downstream
// consumers (dispatch, analytics) can react without polling the API.
// Disabled by default; enable with notify.nats.enabled.
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
	enabled bool
	mu      sync.RWMutex
}

// NATSConfig configures the NATS notifier.
type NATSConfig struct {
	URL     string `json:"url"`
	Subject string `json:"subject"`
	Enabled bool   `json:"enabled"`
}

// DefaultNATSConfig returns the default NATS notifier configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:     nats.DefaultURL,
		Subject: "wayfarer.alerts",
		Enabled: false,
	}
}

// NewNATSNotifier connects to the NATS server and returns a notifier
// publishing to the configured subject.
func NewNATSNotifier(config NATSConfig) (*NATSNotifier, error) {
	subject := config.Subject
	if subject == "" {
		subject = "wayfarer.alerts"
	}

	conn, err := nats.Connect(config.URL,
		nats.Name("wayfarer-alert-notifier"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	return &NATSNotifier{
		conn:    conn,
		subject: subject,
		enabled: config.Enabled,
	}, nil
}

// Name returns the notifier name.
func (n *NATSNotifier) Name() string {
	return "nats"
}

// Enabled returns whether this notifier is enabled and connected.
func (n *NATSNotifier) Enabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled && n.conn != nil && !n.conn.IsClosed()
}

// SetEnabled enables or disables the notifier.
func (n *NATSNotifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// Send publishes the alert as JSON to the configured subject.
func (n *NATSNotifier) Send(ctx context.Context, alert *Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.mu.RLock()
	conn := n.conn
	subject := n.subject
	n.mu.RUnlock()

	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	if err := conn.Publish(subject, body); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}
	return nil
}

// Close drains and closes the underlying connection.
func (n *NATSNotifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn != nil && !n.conn.IsClosed() {
		n.conn.Close()
	}
}
