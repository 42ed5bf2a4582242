// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

package detection

import (
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/wayfarer/internal/alerts"
	"github.com/tomtom215/wayfarer/internal/telemetry"
)

// NoMovementRule flags a device reporting identical coordinates across a
// time gap longer than the stillness threshold. A stationary tourist can
// mean an incapacitated one.
type NoMovementRule struct {
	config  NoMovementConfig
	enabled bool
	mu      sync.RWMutex
}

// NoMovementConfig configures the no-movement rule.
type NoMovementConfig struct {
	// StillThresholdSeconds is the minimum gap between two identical
	// positions before an alert fires.
	StillThresholdSeconds int `json:"still_threshold_seconds"`

	// Severity for generated alerts.
	Severity alerts.Severity `json:"severity"`
}

// DefaultNoMovementConfig returns sensible defaults.
func DefaultNoMovementConfig() NoMovementConfig {
	return NoMovementConfig{
		StillThresholdSeconds: 300, // 5 minutes without movement
		Severity:              alerts.SeverityWarning,
	}
}

// NewNoMovementRule creates a new no-movement rule with defaults.
func NewNoMovementRule() *NoMovementRule {
	return &NoMovementRule{
		config:  DefaultNoMovementConfig(),
		enabled: true,
	}
}

// Type returns the alert type.
func (r *NoMovementRule) Type() alerts.Type {
	return alerts.TypeNoMovement
}

// Evaluate compares two consecutive pings for one device.
func (r *NoMovementRule) Evaluate(prior, current *telemetry.Ping) *alerts.Alert {
	r.mu.RLock()
	if !r.enabled {
		r.mu.RUnlock()
		return nil
	}
	config := r.config
	r.mu.RUnlock()

	if !SameCoordinates(prior, current) {
		return nil
	}

	gap := current.Timestamp.Sub(prior.Timestamp)
	if gap <= time.Duration(config.StillThresholdSeconds)*time.Second {
		return nil
	}

	return &alerts.Alert{
		Type:       alerts.TypeNoMovement,
		Severity:   config.Severity,
		DeviceID:   current.DeviceID,
		TouristRef: current.TouristRef,
		Location:   alerts.Location{Lat: current.Lat, Lon: current.Lon},
		Message: fmt.Sprintf(
			"Device %s has not moved from (%.5f, %.5f) for %.0f seconds",
			current.DeviceID, current.Lat, current.Lon, gap.Seconds(),
		),
		Timestamp: time.Now().UTC(),
	}
}

// Configure updates the rule configuration.
func (r *NoMovementRule) Configure(config json.RawMessage) error {
	var newConfig NoMovementConfig
	if err := json.Unmarshal(config, &newConfig); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if newConfig.StillThresholdSeconds <= 0 {
		return fmt.Errorf("still_threshold_seconds must be positive")
	}
	if newConfig.Severity == "" {
		newConfig.Severity = alerts.SeverityWarning
	}

	r.mu.Lock()
	r.config = newConfig
	r.mu.Unlock()

	return nil
}

// Enabled returns whether this rule is enabled.
func (r *NoMovementRule) Enabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled
}

// SetEnabled enables or disables the rule.
func (r *NoMovementRule) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = enabled
}

// Config returns the current configuration.
func (r *NoMovementRule) Config() NoMovementConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config
}
