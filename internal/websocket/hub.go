// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

// Package websocket pushes created alerts to connected dashboard clients.
package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/wayfarer/internal/alerts"
	"github.com/tomtom215/wayfarer/internal/logging"
	"github.com/tomtom215/wayfarer/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types for WebSocket communication.
const (
	MessageTypeAlertCreated = "alert_created"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
)

// Message represents a WebSocket message.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client

	mu sync.RWMutex

	// done is closed when the run loop exits, releasing client goroutines
	// that would otherwise block handing themselves back to a dead loop.
	// Replaced on each RunWithContext call so a supervisor restart works.
	done chan struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	// Closed until RunWithContext starts: without a loop there is no
	// receiver, so unregister must not block.
	done := make(chan struct{})
	close(done)

	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       done,
	}
}

// doneCh returns the channel closed when the current run loop exits.
func (h *Hub) doneCh() <-chan struct{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.done
}

// unregister hands a client back to the run loop, or returns immediately if
// the loop has stopped (shutdown closes every client anyway).
func (h *Hub) unregister(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.doneCh():
	}
}

// RunWithContext starts the hub with context support for graceful shutdown.
// Designed for suture supervision; returns ctx.Err() after closing all
// connected clients.
//
// DETERMINISM: uses priority-based selection so behavior is predictable
// when multiple channels are ready: shutdown first, then client lifecycle
// events, then broadcasts. Go's select picks randomly among ready channels,
// which would otherwise let a broadcast race a disconnect.
func (h *Hub) RunWithContext(ctx context.Context) error {
	h.mu.Lock()
	h.done = make(chan struct{})
	done := h.done
	h.mu.Unlock()
	defer close(done)

	for {
		// Priority 1: shutdown (non-blocking check)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: client lifecycle events (non-blocking check)
		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		// Priority 3: broadcasts, or block until any event arrives
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.addClient(client)

		case client := <-h.Unregister:
			h.removeClient(client)

		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	metrics.SetWebsocketClients(count)
	logging.Info().Int("total_clients", count).Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	metrics.SetWebsocketClients(count)
	logging.Info().Int("total_clients", count).Msg("websocket client disconnected")
}

// logGracefulShutdown closes all clients and logs structured shutdown
// information. ctx.Err() is not logged as an error; cancellation is the
// expected shutdown path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.Canceled:
		return ShutdownReasonContextCanceled
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// broadcastToClients sends a message to all connected clients.
// DETERMINISM: clients are sorted by ID so delivery order is consistent.
// A client whose send buffer is full is dropped rather than allowed to
// stall the hub.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
	}
	if len(toRemove) > 0 {
		metrics.SetWebsocketClients(len(h.clients))
		logging.Warn().Int("dropped", len(toRemove)).Msg("dropped slow websocket clients")
	}
}

// closeAllClients closes all connected clients in ID order.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.SetWebsocketClients(0)
	logging.Info().Msg("closed all websocket clients during shutdown")
}

// BroadcastAlert pushes a newly created alert to all connected clients.
// Non-blocking: if the broadcast channel is full the alert is dropped from
// the live feed, it remains queryable through the alert store.
func (h *Hub) BroadcastAlert(alert *alerts.Alert) {
	message := Message{
		Type: MessageTypeAlertCreated,
		Data: alert,
	}

	select {
	case h.broadcast <- message:
	default:
		logging.Warn().Str("alert_id", alert.ID).Msg("broadcast channel full, dropping alert message")
	}
}

// BroadcastJSON sends an arbitrary typed message to all connected clients.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	message := Message{
		Type: messageType,
		Data: data,
	}

	select {
	case h.broadcast <- message:
	default:
		logging.Warn().Str("message_type", messageType).Msg("broadcast channel full, dropping JSON message")
	}
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage converts a message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
