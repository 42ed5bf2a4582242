// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

// Package telemetry holds the location ping model and the bounded in-memory
// buffer that ingestion writes to and the anomaly poller reads from.
package telemetry

import (
	"fmt"
	"math"
	"time"
)

// Ping is a single GPS report from a tourist device.
type Ping struct {
	// ID is assigned on ingestion; collision-resistant across restarts.
	ID string `json:"id"`

	// DeviceID identifies the reporting device. Required.
	DeviceID string `json:"deviceId"`

	// TouristRef is an opaque reference to the tourist carrying the device.
	TouristRef string `json:"touristRef,omitempty"`

	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`

	// Timestamp is the receipt time assigned by the buffer when zero.
	Timestamp time.Time `json:"timestamp"`
}

// ValidationError reports a ping that failed ingestion validation.
// The HTTP layer maps it to a 400 response.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid ping: %s %s", e.Field, e.Reason)
}

// Validate checks the required ping fields. DeviceID must be non-empty and
// coordinates must be finite numbers within WGS84 bounds.
func (p *Ping) Validate() error {
	if p.DeviceID == "" {
		return &ValidationError{Field: "deviceId", Reason: "is required"}
	}
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) {
		return &ValidationError{Field: "lat", Reason: "must be a finite number"}
	}
	if math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0) {
		return &ValidationError{Field: "lon", Reason: "must be a finite number"}
	}
	if p.Lat < -90 || p.Lat > 90 {
		return &ValidationError{Field: "lat", Reason: "must be between -90 and 90"}
	}
	if p.Lon < -180 || p.Lon > 180 {
		return &ValidationError{Field: "lon", Reason: "must be between -180 and 180"}
	}
	return nil
}
