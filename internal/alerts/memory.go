// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

package alerts

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/wayfarer/internal/metrics"
)

// MemoryStore is an in-memory Store implementation. It is the default
// backend; alerts do not survive a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	alerts []*Alert
	byID   map[string]*Alert
}

// NewMemoryStore creates an empty in-memory alert store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]*Alert),
	}
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, alert *Alert) (*Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stored := *alert
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	s.alerts = append(s.alerts, &stored)
	s.byID[stored.ID] = &stored
	s.mu.Unlock()

	metrics.RecordAlertCreated(string(stored.Type), string(stored.Severity))

	out := stored
	return &out, nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	alert, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *alert
	return &out, nil
}

// List implements Store. Alerts are returned most recent first on the
// shared timestamp-then-ID key, so memory and badger order identically.
func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]Alert, 0)
	for _, alert := range s.alerts {
		if filter.matches(alert) {
			out = append(out, *alert)
		}
	}
	s.mu.RUnlock()

	sortMostRecentFirst(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Acknowledge implements Store. Re-acknowledging is a no-op success.
func (s *MemoryStore) Acknowledge(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if alert.Acknowledged {
		return nil
	}

	now := time.Now().UTC()
	alert.Acknowledged = true
	alert.AcknowledgedAt = &now

	metrics.RecordAlertAcknowledged()
	return nil
}

// Count implements Store.
func (s *MemoryStore) Count(ctx context.Context, filter Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, alert := range s.alerts {
		if filter.matches(alert) {
			count++
		}
	}
	return count, nil
}
