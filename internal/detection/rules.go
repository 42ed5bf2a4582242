// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

// Package detection evaluates telemetry pings against anomaly rules and
// turns violations into alerts. The Poller drives the rules on a fixed
// interval; each rule compares a device's prior and current observation.
package detection

import (
	"math"

	"github.com/goccy/go-json"

	"github.com/tomtom215/wayfarer/internal/alerts"
	"github.com/tomtom215/wayfarer/internal/telemetry"
)

// CoordinateEpsilon is the threshold for considering two coordinates equal.
// DETERMINISM: direct float equality is unreliable under IEEE 754; 1e-7
// degrees is about 1.1cm at the equator, well below GPS accuracy.
const CoordinateEpsilon = 1e-7

// SameCoordinates reports whether two pings are at the same position,
// within CoordinateEpsilon.
func SameCoordinates(a, b *telemetry.Ping) bool {
	return math.Abs(a.Lat-b.Lat) < CoordinateEpsilon &&
		math.Abs(a.Lon-b.Lon) < CoordinateEpsilon
}

// Rule is the interface all anomaly rules implement. Evaluate receives the
// device's prior and current pings (prior is never nil; the poller skips
// devices without history) and returns an alert or nil.
type Rule interface {
	// Type returns the alert type this rule produces.
	Type() alerts.Type

	// Evaluate compares two consecutive observations for one device.
	Evaluate(prior, current *telemetry.Ping) *alerts.Alert

	// Configure updates the rule configuration.
	Configure(config json.RawMessage) error

	// Enabled returns whether this rule is currently enabled.
	Enabled() bool

	// SetEnabled enables or disables the rule.
	SetEnabled(enabled bool)
}

// haversineDistance calculates the great-circle distance between two points
// on Earth using the Haversine formula. Returns distance in kilometers.
func haversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0

	lat1Rad := lat1 * math.Pi / 180.0
	lon1Rad := lon1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	lon2Rad := lon2 * math.Pi / 180.0

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// roundTo2Decimals rounds a float64 to 2 decimal places.
func roundTo2Decimals(f float64) float64 {
	return math.Round(f*100) / 100
}
