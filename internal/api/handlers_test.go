// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/wayfarer/internal/alerts"
	"github.com/tomtom215/wayfarer/internal/telemetry"
)

func newTestServer(t *testing.T) (http.Handler, *telemetry.Buffer, alerts.Store) {
	t.Helper()

	buffer := telemetry.NewBuffer(telemetry.DefaultCapacity)
	store := alerts.NewMemoryStore()
	handler := NewHandler(buffer, store, nil, nil, []string{"*"})

	mw := NewChiMiddleware(&ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{"*"},
		RateLimitDisabled:  true,
	})
	return NewRouter(handler, mw).Setup(), buffer, store
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode body %q: %v", rec.Body.String(), err)
	}
}

func TestIngestLocationOK(t *testing.T) {
	h, buffer, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/location", map[string]interface{}{
		"deviceId": "D1",
		"lat":      28.60,
		"lon":      77.20,
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %v", resp)
	}
	if buffer.Len() != 1 {
		t.Errorf("expected 1 buffered ping, got %d", buffer.Len())
	}
}

func TestIngestLocationValidation(t *testing.T) {
	h, buffer, _ := newTestServer(t)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing device", map[string]interface{}{"lat": 28.6, "lon": 77.2}},
		{"lat out of range", map[string]interface{}{"deviceId": "D1", "lat": 91.0, "lon": 77.2}},
		{"lon out of range", map[string]interface{}{"deviceId": "D1", "lat": 28.6, "lon": 181.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/v1/location", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			var resp map[string]string
			decodeBody(t, rec, &resp)
			if resp["error"] == "" {
				t.Errorf("expected error message, got %v", resp)
			}
		})
	}

	if buffer.Len() != 0 {
		t.Errorf("expected rejected pings to stay out of the buffer, got %d", buffer.Len())
	}
}

func TestIngestLocationMalformedJSON(t *testing.T) {
	h, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/location", bytes.NewBufferString("{nope"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListLocations(t *testing.T) {
	h, _, _ := newTestServer(t)

	for _, device := range []string{"D1", "D2", "D3"} {
		rec := doJSON(t, h, http.MethodPost, "/v1/location", map[string]interface{}{
			"deviceId": device, "lat": 28.6, "lon": 77.2,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("ingest failed: %d", rec.Code)
		}
	}

	rec := doJSON(t, h, http.MethodGet, "/v1/locations?limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Items []telemetry.Ping `json:"items"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(resp.Items))
	}
	// Oldest-to-newest within the window.
	if resp.Items[0].DeviceID != "D2" || resp.Items[1].DeviceID != "D3" {
		t.Errorf("unexpected window: %s, %s", resp.Items[0].DeviceID, resp.Items[1].DeviceID)
	}
}

func TestPanicCreatesCriticalAlert(t *testing.T) {
	h, buffer, store := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/panic", map[string]interface{}{
		"deviceId":   "D9",
		"touristRef": "T-77",
		"lat":        28.60,
		"lon":        77.20,
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["status"] != "panic_received" {
		t.Errorf("expected panic_received, got %v", resp)
	}
	if resp["alertId"] == "" {
		t.Fatal("expected alertId in response")
	}

	stored, err := store.Get(context.Background(), resp["alertId"])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Type != alerts.TypePanic {
		t.Errorf("expected PANIC, got %s", stored.Type)
	}
	if stored.Severity != alerts.SeverityCritical {
		t.Errorf("expected CRITICAL, got %s", stored.Severity)
	}
	if stored.TouristRef != "T-77" {
		t.Errorf("expected tourist ref preserved, got %s", stored.TouristRef)
	}
	if buffer.Len() != 1 {
		t.Errorf("expected panic ping buffered, got %d", buffer.Len())
	}
}

func TestPanicValidation(t *testing.T) {
	h, _, store := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/panic", map[string]interface{}{
		"lat": 28.6, "lon": 77.2,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	count, err := store.Count(context.Background(), alerts.Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no alerts from invalid panic, got %d", count)
	}
}

func TestListAlertsAndFilters(t *testing.T) {
	h, _, store := newTestServer(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	a1, err := store.Create(context.Background(), &alerts.Alert{
		Type: alerts.TypeNoMovement, Severity: alerts.SeverityWarning, DeviceID: "D1", Timestamp: base,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Create(context.Background(), &alerts.Alert{
		Type: alerts.TypeSuddenJump, Severity: alerts.SeverityHigh, DeviceID: "D2", Timestamp: base.Add(time.Minute),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Acknowledge(context.Background(), a1.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := doJSON(t, h, http.MethodGet, "/v1/alerts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var all struct {
		Items []alerts.Alert `json:"items"`
	}
	decodeBody(t, rec, &all)
	if len(all.Items) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(all.Items))
	}
	if all.Items[0].DeviceID != "D2" {
		t.Errorf("expected most recent first, got %s", all.Items[0].DeviceID)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/alerts?unacknowledged=true", nil)
	var unacked struct {
		Items []alerts.Alert `json:"items"`
	}
	decodeBody(t, rec, &unacked)
	if len(unacked.Items) != 1 || unacked.Items[0].DeviceID != "D2" {
		t.Errorf("expected only the unacknowledged alert, got %+v", unacked.Items)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/alerts?type=SUDDEN_JUMP", nil)
	var byType struct {
		Items []alerts.Alert `json:"items"`
	}
	decodeBody(t, rec, &byType)
	if len(byType.Items) != 1 || byType.Items[0].Type != alerts.TypeSuddenJump {
		t.Errorf("expected only SUDDEN_JUMP, got %+v", byType.Items)
	}
}

func TestAcknowledgeAlert(t *testing.T) {
	h, _, store := newTestServer(t)

	created, err := store.Create(context.Background(), &alerts.Alert{
		Type: alerts.TypeNoMovement, Severity: alerts.SeverityWarning, DeviceID: "D1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := doJSON(t, h, http.MethodPost, "/v1/alerts/"+created.ID+"/acknowledge", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Idempotent re-acknowledge.
	rec = doJSON(t, h, http.MethodPost, "/v1/alerts/"+created.ID+"/acknowledge", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on re-acknowledge, got %d", rec.Code)
	}

	stored, err := store.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stored.Acknowledged {
		t.Error("expected alert acknowledged")
	}
}

func TestAcknowledgeUnknownAlert(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/alerts/nope/acknowledge", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["error"] != "not found" {
		t.Errorf("expected error body \"not found\", got %v", resp)
	}
}

func TestAlertStats(t *testing.T) {
	h, _, store := newTestServer(t)

	if _, err := store.Create(context.Background(), &alerts.Alert{
		Type: alerts.TypePanic, Severity: alerts.SeverityCritical, DeviceID: "D1",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := doJSON(t, h, http.MethodGet, "/v1/alerts/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp alertStatsResponse
	decodeBody(t, rec, &resp)
	if resp.Total != 1 || resp.Unacknowledged != 1 {
		t.Errorf("unexpected stats: %+v", resp)
	}
}

func TestHealthEndpoints(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/health/live", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected live 200, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/health/ready", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected ready 200, got %d", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/v1/alerts", nil)
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff header, got %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("expected DENY header, got %q", got)
	}
}

func TestRequestIDHeader(t *testing.T) {
	h, _, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/v1/alerts", nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header on responses")
	}
}
