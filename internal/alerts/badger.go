// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/wayfarer/internal/metrics"
)

// alertKeyPrefix namespaces alert records in the key space.
const alertKeyPrefix = "alert:"

// BadgerStore is a Store backed by an embedded Badger database. Use it when
// alerts must survive process restarts; selected with alerts.store=badger.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a Badger database at path.
// Badger's own logger is disabled so all output flows through zerolog.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open alert store at %s: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func alertKey(id string) []byte {
	return []byte(alertKeyPrefix + id)
}

// Create implements Store.
func (s *BadgerStore) Create(ctx context.Context, alert *Alert) (*Alert, error) {
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

	value, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal alert: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(alertKey(stored.ID), value)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist alert: %w", err)
	}

	metrics.RecordAlertCreated(string(stored.Type), string(stored.Severity))
	return &stored, nil
}

// Get implements Store.
func (s *BadgerStore) Get(ctx context.Context, id string) (*Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var alert Alert
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(alertKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &alert)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read alert: %w", err)
	}
	return &alert, nil
}

// List implements Store. Alerts are scanned, filtered, and ordered on the
// shared timestamp-then-ID key.
func (s *BadgerStore) List(ctx context.Context, filter Filter) ([]Alert, error) {
	all, err := s.scan(ctx, filter)
	if err != nil {
		return nil, err
	}

	sortMostRecentFirst(all)
	if filter.Limit > 0 && len(all) > filter.Limit {
		all = all[:filter.Limit]
	}
	return all, nil
}

// Acknowledge implements Store. Re-acknowledging is a no-op success.
func (s *BadgerStore) Acknowledge(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	acknowledged := false
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(alertKey(id))
		if err != nil {
			return err
		}

		var alert Alert
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &alert)
		}); err != nil {
			return err
		}

		if alert.Acknowledged {
			return nil
		}

		now := time.Now().UTC()
		alert.Acknowledged = true
		alert.AcknowledgedAt = &now
		acknowledged = true

		value, err := json.Marshal(&alert)
		if err != nil {
			return err
		}
		return txn.Set(alertKey(id), value)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}

	if acknowledged {
		metrics.RecordAlertAcknowledged()
	}
	return nil
}

// Count implements Store.
func (s *BadgerStore) Count(ctx context.Context, filter Filter) (int, error) {
	all, err := s.scan(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

// scan collects all alerts matching the filter predicates (without the limit).
func (s *BadgerStore) scan(ctx context.Context, filter Filter) ([]Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]Alert, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(alertKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var alert Alert
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &alert)
			})
			if err != nil {
				return err
			}
			if filter.matches(&alert) {
				out = append(out, alert)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan alerts: %w", err)
	}
	return out, nil
}
