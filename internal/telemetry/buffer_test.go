// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"
)

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	b := NewBuffer(10)

	stored, err := b.Append(Ping{DeviceID: "D1", Lat: 12.97, Lon: 77.59})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.ID == "" {
		t.Error("expected generated ID")
	}
	if stored.Timestamp.IsZero() {
		t.Error("expected receipt timestamp")
	}
}

func TestAppendPreservesCallerTimestamp(t *testing.T) {
	b := NewBuffer(10)
	ts := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	stored, err := b.Append(Ping{DeviceID: "D1", Lat: 1, Lon: 2, Timestamp: ts})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stored.Timestamp.Equal(ts) {
		t.Errorf("timestamp overwritten: got %v, want %v", stored.Timestamp, ts)
	}
}

func TestAppendValidation(t *testing.T) {
	tests := []struct {
		name  string
		ping  Ping
		field string
	}{
		{"missing device", Ping{Lat: 1, Lon: 2}, "deviceId"},
		{"nan lat", Ping{DeviceID: "D1", Lat: math.NaN(), Lon: 2}, "lat"},
		{"inf lon", Ping{DeviceID: "D1", Lat: 1, Lon: math.Inf(1)}, "lon"},
		{"lat out of range", Ping{DeviceID: "D1", Lat: 91, Lon: 2}, "lat"},
		{"lon out of range", Ping{DeviceID: "D1", Lat: 1, Lon: -181}, "lon"},
	}

	b := NewBuffer(10)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Append(tt.ping)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, verr.Field)
			}
		})
	}

	if b.Len() != 0 {
		t.Errorf("invalid pings must not be stored, buffer has %d", b.Len())
	}
}

func TestEvictionKeepsNewest(t *testing.T) {
	b := NewBuffer(3)
	for i := 0; i < 5; i++ {
		if _, err := b.Append(Ping{DeviceID: fmt.Sprintf("D%d", i), Lat: 1, Lon: 2}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if b.Len() != 3 {
		t.Fatalf("expected buffer length 3, got %d", b.Len())
	}

	pings, err := b.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"D2", "D3", "D4"}
	for i, w := range want {
		if pings[i].DeviceID != w {
			t.Errorf("position %d: got %s, want %s", i, pings[i].DeviceID, w)
		}
	}
}

func TestRecentOrderAndLimit(t *testing.T) {
	b := NewBuffer(10)
	for i := 0; i < 6; i++ {
		if _, err := b.Append(Ping{DeviceID: fmt.Sprintf("D%d", i), Lat: 1, Lon: 2}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	pings, err := b.Recent(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pings) != 3 {
		t.Fatalf("expected 3 pings, got %d", len(pings))
	}
	// Newest 3, oldest first.
	want := []string{"D3", "D4", "D5"}
	for i, w := range want {
		if pings[i].DeviceID != w {
			t.Errorf("position %d: got %s, want %s", i, pings[i].DeviceID, w)
		}
	}
}

func TestRecentDefaultLimit(t *testing.T) {
	b := NewBuffer(2)
	pings, err := b.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pings) != 0 {
		t.Errorf("expected empty snapshot, got %d", len(pings))
	}
}

func TestRecentCanceledContext(t *testing.T) {
	b := NewBuffer(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := b.Recent(ctx, 10); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestConcurrentAppendAndRecent(t *testing.T) {
	b := NewBuffer(50)
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_, _ = b.Append(Ping{DeviceID: fmt.Sprintf("D%d", g), Lat: 1, Lon: 2})
				_, _ = b.Recent(context.Background(), 25)
			}
		}(g)
	}
	wg.Wait()

	if b.Len() != 50 {
		t.Errorf("expected full buffer of 50, got %d", b.Len())
	}
}
