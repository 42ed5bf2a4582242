// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

// Package alerts holds the alert model, its lifecycle (ACTIVE until
// acknowledged, one way), the store implementations, and the notifier
// boundary to external delivery systems.
package alerts

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ErrNotFound is returned when an alert ID does not exist in the store.
var ErrNotFound = errors.New("alert not found")

// Type identifies what kind of anomaly or event produced the alert.
type Type string

const (
	// TypeNoMovement flags a device reporting identical coordinates for
	// longer than the stillness threshold.
	TypeNoMovement Type = "NO_MOVEMENT"

	// TypeSuddenJump flags a device whose implied travel speed between
	// consecutive pings exceeds the plausible maximum.
	TypeSuddenJump Type = "SUDDEN_JUMP"

	// TypePanic is raised synchronously when a tourist presses the panic
	// button.
	TypePanic Type = "PANIC"
)

// Severity indicates the severity level of an alert.
type Severity string

const (
	SeverityWarning  Severity = "WARNING"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Location is a geographic point attached to an alert.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Alert represents a safety alert for a tourist device.
//
// Acknowledged is monotonic: once set it is never cleared, and no store
// operation can transition an alert back to unacknowledged.
type Alert struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	Severity   Severity  `json:"severity"`
	DeviceID   string    `json:"deviceId"`
	TouristRef string    `json:"touristRef,omitempty"`
	Message    string    `json:"message,omitempty"`
	Location   Location  `json:"location"`

	// LastLocation carries the prior position for SUDDEN_JUMP alerts so
	// responders can see both ends of the implausible transition.
	LastLocation *Location `json:"lastLocation,omitempty"`

	Timestamp      time.Time  `json:"timestamp"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
}

// Filter defines filtering options for alert queries.
// List results are always ordered most recent first.
type Filter struct {
	// UnacknowledgedOnly restricts results to active alerts.
	UnacknowledgedOnly bool

	Types      []Type
	Severities []Severity
	DeviceID   string

	// Limit caps the number of returned alerts. Zero means no cap.
	Limit int
}

// matches reports whether the alert passes every filter predicate except
// the limit, which callers apply while collecting.
func (f Filter) matches(a *Alert) bool {
	if f.UnacknowledgedOnly && a.Acknowledged {
		return false
	}
	if f.DeviceID != "" && a.DeviceID != f.DeviceID {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if a.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Severities) > 0 {
		found := false
		for _, s := range f.Severities {
			if a.Severity == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// sortMostRecentFirst orders alerts newest first by timestamp, ties broken
// by ID descending. Every backend sorts on this key so the same records list
// in the same order regardless of storage.
func sortMostRecentFirst(items []Alert) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].Timestamp.Equal(items[j].Timestamp) {
			return items[i].Timestamp.After(items[j].Timestamp)
		}
		return items[i].ID > items[j].ID
	})
}

// Store defines the alert persistence contract.
type Store interface {
	// Create persists a new alert. A missing ID is assigned a
	// collision-resistant unique ID, a zero timestamp is set to now, and
	// the stored alert is returned.
	Create(ctx context.Context, alert *Alert) (*Alert, error)

	// Get retrieves an alert by ID. Returns ErrNotFound for unknown IDs.
	Get(ctx context.Context, id string) (*Alert, error)

	// List retrieves alerts matching the filter, most recent first.
	List(ctx context.Context, filter Filter) ([]Alert, error)

	// Acknowledge marks an alert acknowledged. Acknowledging an already
	// acknowledged alert succeeds without changing AcknowledgedAt.
	// Returns ErrNotFound for unknown IDs.
	Acknowledge(ctx context.Context, id string) error

	// Count returns the number of alerts matching the filter.
	Count(ctx context.Context, filter Filter) (int, error)
}

// Notifier delivers created alerts to an external system. Delivery is
// best effort; failures never block alert creation.
type Notifier interface {
	// Send delivers an alert to the notification channel.
	Send(ctx context.Context, alert *Alert) error

	// Name returns the notifier name (e.g., "webhook", "nats").
	Name() string

	// Enabled returns whether this notifier is enabled.
	Enabled() bool
}
