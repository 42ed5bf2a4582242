// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/wayfarer/internal/metrics"
)

const (
	// DefaultCapacity bounds the buffer when no capacity is configured.
	DefaultCapacity = 2000

	// DefaultRecentLimit is the snapshot size handed out when callers
	// request zero or negative limits.
	DefaultRecentLimit = 500
)

// Buffer is a bounded FIFO of location pings. Appending beyond capacity
// evicts the oldest ping. All methods are safe for concurrent use.
//
// The buffer is a ring over a fixed slice; no per-device quota is enforced,
// so a chatty device can crowd out others within the window. Evictions are
// counted in metrics to make that visible.
type Buffer struct {
	mu    sync.RWMutex
	items []Ping
	head  int // index of the oldest ping
	size  int
}

// NewBuffer creates a buffer holding at most capacity pings.
// A non-positive capacity falls back to DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		items: make([]Ping, capacity),
	}
}

// Capacity returns the fixed capacity of the buffer.
func (b *Buffer) Capacity() int {
	return len(b.items)
}

// Len returns the number of buffered pings.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Append validates and stores a ping, evicting the oldest ping when the
// buffer is full. The stored ping (with ID and timestamp populated) is
// returned. A *ValidationError is returned for invalid pings; nothing is
// stored in that case.
func (b *Buffer) Append(ping Ping) (Ping, error) {
	if err := ping.Validate(); err != nil {
		metrics.RecordPingRejected()
		return Ping{}, err
	}

	if ping.ID == "" {
		ping.ID = uuid.New().String()
	}
	if ping.Timestamp.IsZero() {
		ping.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	if b.size == len(b.items) {
		// Full: overwrite the oldest slot.
		b.items[b.head] = ping
		b.head = (b.head + 1) % len(b.items)
		metrics.RecordBufferEviction()
	} else {
		b.items[(b.head+b.size)%len(b.items)] = ping
		b.size++
	}
	size := b.size
	b.mu.Unlock()

	metrics.RecordPingIngested()
	metrics.SetBufferSize(size)
	return ping, nil
}

// Recent returns up to limit of the most recent pings, ordered oldest to
// newest. A non-positive limit falls back to DefaultRecentLimit. The error
// return satisfies the poller's snapshot contract; the in-memory buffer
// itself never fails.
func (b *Buffer) Recent(ctx context.Context, limit int) ([]Ping, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	n := b.size
	if limit < n {
		n = limit
	}

	out := make([]Ping, n)
	// Skip the oldest (size - n) entries so the newest n remain.
	start := b.head + (b.size - n)
	for i := 0; i < n; i++ {
		out[i] = b.items[(start+i)%len(b.items)]
	}
	return out, nil
}

// Snapshot returns every buffered ping, ordered oldest to newest.
func (b *Buffer) Snapshot() []Ping {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Ping, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.head+i)%len(b.items)]
	}
	return out
}
