// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

package websocket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/wayfarer/internal/alerts"
)

// testClient builds a hub-less client with just the pieces the hub touches.
func testClient() *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		send: make(chan Message, 4),
	}
}

func startHub(t *testing.T) (*Hub, context.CancelFunc, chan error) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- hub.RunWithContext(ctx)
	}()
	return hub, cancel, errCh
}

func waitForClientCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if hub.GetClientCount() == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("client count never reached %d, have %d", want, hub.GetClientCount())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestHubRegisterAndUnregister(t *testing.T) {
	hub, cancel, errCh := startHub(t)
	defer cancel()

	client := testClient()
	hub.Register <- client
	waitForClientCount(t, hub, 1)

	hub.Unregister <- client
	waitForClientCount(t, hub, 0)

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop after cancel")
	}
}

func TestHubBroadcastAlertReachesClients(t *testing.T) {
	hub, cancel, _ := startHub(t)
	defer cancel()

	client := testClient()
	hub.Register <- client
	waitForClientCount(t, hub, 1)

	alert := &alerts.Alert{ID: "a1", Type: alerts.TypeSuddenJump, DeviceID: "D1"}
	hub.BroadcastAlert(alert)

	select {
	case msg := <-client.send:
		if msg.Type != MessageTypeAlertCreated {
			t.Errorf("expected %s message, got %s", MessageTypeAlertCreated, msg.Type)
		}
		got, ok := msg.Data.(*alerts.Alert)
		if !ok {
			t.Fatalf("expected alert payload, got %T", msg.Data)
		}
		if got.ID != "a1" {
			t.Errorf("expected alert a1, got %s", got.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client never received broadcast")
	}
}

func TestHubDropsSlowClients(t *testing.T) {
	hub, cancel, _ := startHub(t)
	defer cancel()

	slow := testClient()
	hub.Register <- slow
	waitForClientCount(t, hub, 1)

	// Never drain; the buffered channel fills and the client gets dropped.
	for i := 0; i < cap(slow.send)+4; i++ {
		hub.BroadcastAlert(&alerts.Alert{ID: "x", Type: alerts.TypeNoMovement})
	}

	waitForClientCount(t, hub, 0)
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub, cancel, errCh := startHub(t)

	client := testClient()
	hub.Register <- client
	waitForClientCount(t, hub, 1)

	cancel()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("expected send channel closed on shutdown")
		}
	default:
		t.Error("expected send channel closed on shutdown")
	}
	if hub.GetClientCount() != 0 {
		t.Errorf("expected 0 clients after shutdown, got %d", hub.GetClientCount())
	}
}

func TestHubUnregisterAfterShutdownDoesNotBlock(t *testing.T) {
	hub, cancel, errCh := startHub(t)

	client := testClient()
	hub.Register <- client
	waitForClientCount(t, hub, 1)

	cancel()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	// A client's read goroutine exits through unregister; with the loop gone
	// there is no receiver, so it must return instead of blocking forever.
	released := make(chan struct{})
	go func() {
		hub.unregister(client)
		close(released)
	}()

	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatal("unregister blocked after hub shutdown")
	}
}

func TestMarshalMessage(t *testing.T) {
	data, err := MarshalMessage(Message{Type: MessageTypePong})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"type":"pong","data":null}` {
		t.Errorf("unexpected payload: %s", data)
	}
}
