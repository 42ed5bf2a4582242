// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

package reporter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/wayfarer/internal/telemetry"
)

func testReporter(t *testing.T, baseURL string) *Reporter {
	t.Helper()
	r := New(Config{
		BaseURL:       baseURL,
		MaxAttempts:   3,
		Timeout:       2 * time.Second,
		RatePerSecond: 1000,
	})
	r.backoffBase = time.Millisecond
	return r
}

func panicHandler(status int, body interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func TestPanicDeliversFirstAttempt(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path != "/v1/panic" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var report PanicReport
		if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if report.DeviceID != "D1" {
			t.Errorf("expected device D1, got %s", report.DeviceID)
		}
		panicHandler(http.StatusOK, Receipt{Status: "panic_received", AlertID: "a-1"})(w, r)
	}))
	defer srv.Close()

	r := testReporter(t, srv.URL)
	receipt, err := r.Panic(context.Background(), PanicReport{DeviceID: "D1", Lat: 28.6, Lon: 77.2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.AlertID != "a-1" {
		t.Errorf("expected alert id a-1, got %s", receipt.AlertID)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("expected 1 request, got %d", got)
	}
}

func TestPanicRetriesTransientFailures(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		panicHandler(http.StatusOK, Receipt{Status: "panic_received", AlertID: "a-2"})(w, r)
	}))
	defer srv.Close()

	r := testReporter(t, srv.URL)
	receipt, err := r.Panic(context.Background(), PanicReport{DeviceID: "D1", Lat: 28.6, Lon: 77.2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.AlertID != "a-2" {
		t.Errorf("expected alert id a-2, got %s", receipt.AlertID)
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("expected 3 requests, got %d", got)
	}
}

func TestPanicExhaustsRetries(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := testReporter(t, srv.URL)
	_, err := r.Panic(context.Background(), PanicReport{DeviceID: "D1", Lat: 28.6, Lon: 77.2})
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("expected 3 requests, got %d", got)
	}
}

func TestPanicStopsOnValidationRejection(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		panicHandler(http.StatusBadRequest, map[string]string{"error": "invalid ping: lat: must be between -90 and 90"})(w, r)
	}))
	defer srv.Close()

	r := testReporter(t, srv.URL)
	_, err := r.Panic(context.Background(), PanicReport{DeviceID: "D1", Lat: 95, Lon: 77.2})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrRetriesExhausted) {
		t.Errorf("validation rejection must not be retried: %v", err)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("expected 1 request, got %d", got)
	}
}

func TestPanicBackoffIsLinear(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := testReporter(t, srv.URL)
	r.backoffBase = 20 * time.Millisecond

	start := time.Now()
	_, err := r.Panic(context.Background(), PanicReport{DeviceID: "D1", Lat: 28.6, Lon: 77.2})
	elapsed := time.Since(start)

	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	// Two waits between three attempts: 1x base + 2x base = 60ms minimum.
	if elapsed < 60*time.Millisecond {
		t.Errorf("expected at least 60ms of backoff, got %v", elapsed)
	}
}

func TestPanicHonorsContextDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := testReporter(t, srv.URL)
	r.backoffBase = 10 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := r.Panic(ctx, PanicReport{DeviceID: "D1", Lat: 28.6, Lon: 77.2})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestReportPostsLocation(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path != "/v1/location" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var ping telemetry.Ping
		if err := json.NewDecoder(r.Body).Decode(&ping); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if ping.DeviceID != "D4" {
			t.Errorf("expected device D4, got %s", ping.DeviceID)
		}
		panicHandler(http.StatusOK, map[string]string{"status": "ok"})(w, r)
	}))
	defer srv.Close()

	r := testReporter(t, srv.URL)
	if err := r.Report(context.Background(), telemetry.Ping{DeviceID: "D4", Lat: 28.6, Lon: 77.2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("expected 1 request, got %d", got)
	}
}

func TestReportExhaustsRetries(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := testReporter(t, srv.URL)
	err := r.Report(context.Background(), telemetry.Ping{DeviceID: "D4", Lat: 28.6, Lon: 77.2})
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("expected 3 requests, got %d", got)
	}
}

func TestReportAsyncDelivers(t *testing.T) {
	done := make(chan telemetry.Ping, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ping telemetry.Ping
		if err := json.NewDecoder(r.Body).Decode(&ping); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		done <- ping
		panicHandler(http.StatusOK, map[string]string{"status": "ok"})(w, r)
	}))
	defer srv.Close()

	r := testReporter(t, srv.URL)
	r.ReportAsync(telemetry.Ping{DeviceID: "D7", Lat: 28.6, Lon: 77.2})

	select {
	case ping := <-done:
		if ping.DeviceID != "D7" {
			t.Errorf("expected device D7, got %s", ping.DeviceID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for async report")
	}
}

func TestNewDefaults(t *testing.T) {
	r := New(Config{BaseURL: "http://localhost:8080"})
	if r.maxAttempts != DefaultMaxAttempts {
		t.Errorf("expected %d attempts, got %d", DefaultMaxAttempts, r.maxAttempts)
	}
	if r.backoffBase != time.Second {
		t.Errorf("expected 1s backoff base, got %v", r.backoffBase)
	}
}
