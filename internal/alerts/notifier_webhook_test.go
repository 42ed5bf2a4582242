// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

package alerts

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWebhookNotifierSend(t *testing.T) {
	received := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(WebhookConfig{
		WebhookURL:  server.URL,
		Enabled:     true,
		RateLimitMs: 1,
		Headers:     map[string]string{"X-Auth": "secret"},
	})

	alert := &Alert{ID: "a1", Type: TypePanic, Severity: SeverityCritical, DeviceID: "D1"}
	if err := n.Send(context.Background(), alert); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body := <-received
	if !strings.Contains(body, `"id":"a1"`) {
		t.Errorf("expected alert in payload, got: %s", body)
	}
	if !strings.Contains(body, `"event_type":"safety_alert"`) {
		t.Errorf("expected event_type, got: %s", body)
	}
}

func TestWebhookNotifierErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n := NewWebhookNotifier(WebhookConfig{WebhookURL: server.URL, Enabled: true, RateLimitMs: 1})

	err := n.Send(context.Background(), &Alert{ID: "a1", Type: TypePanic})
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("expected status in error, got: %v", err)
	}
}

func TestWebhookNotifierDisabledIsNoop(t *testing.T) {
	n := NewWebhookNotifier(WebhookConfig{WebhookURL: "http://127.0.0.1:1", Enabled: false})

	if n.Enabled() {
		t.Error("expected notifier to be disabled")
	}
	if err := n.Send(context.Background(), &Alert{ID: "a1"}); err != nil {
		t.Errorf("disabled notifier must not attempt delivery: %v", err)
	}
}

func TestWebhookNotifierNoURL(t *testing.T) {
	n := NewWebhookNotifier(WebhookConfig{Enabled: true})
	if n.Enabled() {
		t.Error("notifier without URL must report disabled")
	}
}
