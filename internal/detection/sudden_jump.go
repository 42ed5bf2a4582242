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

// SuddenJumpRule flags a device whose implied travel speed between two
// consecutive pings exceeds the plausible maximum. A teleporting device
// usually means a spoofed or cloned tracker.
type SuddenJumpRule struct {
	config  SuddenJumpConfig
	enabled bool
	mu      sync.RWMutex
}

// SuddenJumpConfig configures the sudden-jump rule.
type SuddenJumpConfig struct {
	// MaxSpeedKmH is the maximum plausible travel speed.
	MaxSpeedKmH float64 `json:"max_speed_kmh"`

	// Severity for generated alerts.
	Severity alerts.Severity `json:"severity"`
}

// DefaultSuddenJumpConfig returns sensible defaults.
func DefaultSuddenJumpConfig() SuddenJumpConfig {
	return SuddenJumpConfig{
		MaxSpeedKmH: 250, // Faster than any ground transport
		Severity:    alerts.SeverityHigh,
	}
}

// NewSuddenJumpRule creates a new sudden-jump rule with defaults.
func NewSuddenJumpRule() *SuddenJumpRule {
	return &SuddenJumpRule{
		config:  DefaultSuddenJumpConfig(),
		enabled: true,
	}
}

// Type returns the alert type.
func (r *SuddenJumpRule) Type() alerts.Type {
	return alerts.TypeSuddenJump
}

// Evaluate compares two consecutive pings for one device. A zero or
// negative time delta skips the check; speed is undefined there.
func (r *SuddenJumpRule) Evaluate(prior, current *telemetry.Ping) *alerts.Alert {
	r.mu.RLock()
	if !r.enabled {
		r.mu.RUnlock()
		return nil
	}
	config := r.config
	r.mu.RUnlock()

	timeDelta := current.Timestamp.Sub(prior.Timestamp)
	if timeDelta <= 0 {
		return nil
	}

	distanceKm := haversineDistance(prior.Lat, prior.Lon, current.Lat, current.Lon)
	speedKmH := distanceKm / timeDelta.Hours()

	if speedKmH <= config.MaxSpeedKmH {
		return nil
	}

	return &alerts.Alert{
		Type:       alerts.TypeSuddenJump,
		Severity:   config.Severity,
		DeviceID:   current.DeviceID,
		TouristRef: current.TouristRef,
		Location:   alerts.Location{Lat: current.Lat, Lon: current.Lon},
		// Both ends of the transition, so responders see where the
		// device came from.
		LastLocation: &alerts.Location{Lat: prior.Lat, Lon: prior.Lon},
		Message: fmt.Sprintf(
			"Device %s jumped %.2f km in %.0f seconds (%.0f km/h)",
			current.DeviceID,
			roundTo2Decimals(distanceKm),
			timeDelta.Seconds(),
			speedKmH,
		),
		Timestamp: time.Now().UTC(),
	}
}

// Configure updates the rule configuration.
func (r *SuddenJumpRule) Configure(config json.RawMessage) error {
	var newConfig SuddenJumpConfig
	if err := json.Unmarshal(config, &newConfig); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if newConfig.MaxSpeedKmH <= 0 {
		return fmt.Errorf("max_speed_kmh must be positive")
	}
	if newConfig.Severity == "" {
		newConfig.Severity = alerts.SeverityHigh
	}

	r.mu.Lock()
	r.config = newConfig
	r.mu.Unlock()

	return nil
}

// Enabled returns whether this rule is enabled.
func (r *SuddenJumpRule) Enabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled
}

// SetEnabled enables or disables the rule.
func (r *SuddenJumpRule) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = enabled
}

// Config returns the current configuration.
func (r *SuddenJumpRule) Config() SuddenJumpConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config
}
