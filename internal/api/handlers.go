// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

// Package api provides the HTTP surface: telemetry ingestion, panic ingress,
// alert queries, health, and the live alert websocket.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/wayfarer/internal/alerts"
	"github.com/tomtom215/wayfarer/internal/detection"
	"github.com/tomtom215/wayfarer/internal/logging"
	"github.com/tomtom215/wayfarer/internal/telemetry"
	ws "github.com/tomtom215/wayfarer/internal/websocket"
)

// Handler bundles the dependencies of all HTTP handlers.
type Handler struct {
	buffer    *telemetry.Buffer
	store     alerts.Store
	poller    *detection.Poller
	hub       *ws.Hub
	notifiers []alerts.Notifier

	allowedOrigins []string
	startedAt      time.Time
}

// NewHandler creates a Handler. poller and hub may be nil in reduced
// deployments; the affected endpoints degrade gracefully.
func NewHandler(buffer *telemetry.Buffer, store alerts.Store, poller *detection.Poller, hub *ws.Hub, allowedOrigins []string) *Handler {
	return &Handler{
		buffer:         buffer,
		store:          store,
		poller:         poller,
		hub:            hub,
		allowedOrigins: allowedOrigins,
		startedAt:      time.Now().UTC(),
	}
}

// AddNotifier registers a notifier for panic alerts.
func (h *Handler) AddNotifier(n alerts.Notifier) {
	h.notifiers = append(h.notifiers, n)
}

// IngestLocation handles POST /v1/location. Invalid pings are rejected with
// 400 and never reach the buffer.
func (h *Handler) IngestLocation(w http.ResponseWriter, r *http.Request) {
	var ping telemetry.Ping
	if err := json.NewDecoder(r.Body).Decode(&ping); err != nil {
		respondError(w, http.StatusBadRequest, "malformed JSON body", err)
		return
	}

	if _, err := h.buffer.Append(ping); err != nil {
		var ve *telemetry.ValidationError
		if errors.As(err, &ve) {
			respondError(w, http.StatusBadRequest, ve.Error(), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to store ping", err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// ListLocations handles GET /v1/locations. Returns the most recent pings in
// oldest-to-newest order.
func (h *Handler) ListLocations(w http.ResponseWriter, r *http.Request) {
	limit := telemetry.DefaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	pings, err := h.buffer.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read pings", err)
		return
	}

	writeJSON(w, http.StatusOK, itemsResponse{Items: pings})
}

// panicRequest is the body of POST /v1/panic.
type panicRequest struct {
	DeviceID   string  `json:"deviceId"`
	TouristRef string  `json:"touristRef,omitempty"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Message    string  `json:"message,omitempty"`
}

// Panic handles POST /v1/panic. The alert is persisted synchronously so the
// response can carry its ID; a device that receives 200 knows the panic is
// recorded, not merely queued.
func (h *Handler) Panic(w http.ResponseWriter, r *http.Request) {
	var req panicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed JSON body", err)
		return
	}

	ping := telemetry.Ping{
		DeviceID:   req.DeviceID,
		TouristRef: req.TouristRef,
		Lat:        req.Lat,
		Lon:        req.Lon,
	}
	if err := ping.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	message := req.Message
	if message == "" {
		message = "Panic button pressed by device " + req.DeviceID
	}

	alert := &alerts.Alert{
		Type:       alerts.TypePanic,
		Severity:   alerts.SeverityCritical,
		DeviceID:   req.DeviceID,
		TouristRef: req.TouristRef,
		Location:   alerts.Location{Lat: req.Lat, Lon: req.Lon},
		Message:    message,
	}

	created, err := h.store.Create(r.Context(), alert)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to record panic", err)
		return
	}

	// The panic position is telemetry too; keep the buffer current so the
	// poller sees the device where it raised the alarm.
	if _, err := h.buffer.Append(ping); err != nil {
		logging.Warn().Err(err).Str("device_id", req.DeviceID).Msg("failed to buffer panic ping")
	}

	logging.Info().
		Str("alert_id", created.ID).
		Str("device_id", created.DeviceID).
		Msg("panic alert created")

	if h.hub != nil {
		h.hub.BroadcastAlert(created)
	}
	for _, n := range h.notifiers {
		if !n.Enabled() {
			continue
		}
		go func(n alerts.Notifier) {
			if err := n.Send(context.WithoutCancel(r.Context()), created); err != nil {
				logging.Warn().Err(err).
					Str("notifier", n.Name()).
					Str("alert_id", created.ID).
					Msg("panic notification failed")
			}
		}(n)
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: "panic_received", AlertID: created.ID})
}

// ListAlerts handles GET /v1/alerts. Results are most-recent-first.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	filter := alerts.Filter{}
	q := r.URL.Query()

	if v := q.Get("unacknowledged"); v == "true" || v == "1" {
		filter.UnacknowledgedOnly = true
	}
	if v := q.Get("type"); v != "" {
		filter.Types = []alerts.Type{alerts.Type(v)}
	}
	if v := q.Get("severity"); v != "" {
		filter.Severities = []alerts.Severity{alerts.Severity(v)}
	}
	if v := q.Get("deviceId"); v != "" {
		filter.DeviceID = v
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}

	items, err := h.store.List(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list alerts", err)
		return
	}

	writeJSON(w, http.StatusOK, itemsResponse{Items: items})
}

// AcknowledgeAlert handles POST /v1/alerts/{id}/acknowledge. Acknowledging
// an already acknowledged alert succeeds without change.
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "alert id required", nil)
		return
	}

	if err := h.store.Acknowledge(r.Context(), id); err != nil {
		if errors.Is(err, alerts.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to acknowledge alert", err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// alertStatsResponse is the body of GET /v1/alerts/stats.
type alertStatsResponse struct {
	Total            int                      `json:"total"`
	Unacknowledged   int                      `json:"unacknowledged"`
	BufferedPings    int                      `json:"buffered_pings"`
	WebsocketClients int                      `json:"websocket_clients"`
	Detection        *detection.PollerMetrics `json:"detection,omitempty"`
}

// AlertStats handles GET /v1/alerts/stats.
func (h *Handler) AlertStats(w http.ResponseWriter, r *http.Request) {
	total, err := h.store.Count(r.Context(), alerts.Filter{})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count alerts", err)
		return
	}
	unacked, err := h.store.Count(r.Context(), alerts.Filter{UnacknowledgedOnly: true})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count alerts", err)
		return
	}

	resp := alertStatsResponse{
		Total:          total,
		Unacknowledged: unacked,
		BufferedPings:  h.buffer.Len(),
	}
	if h.poller != nil {
		m := h.poller.Metrics()
		resp.Detection = &m
	}
	if h.hub != nil {
		resp.WebsocketClients = h.hub.GetClientCount()
	}

	writeJSON(w, http.StatusOK, resp)
}

// HealthLive handles GET /api/v1/health/live. Process is up.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthReady handles GET /api/v1/health/ready. Ready means the alert store
// answers queries.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.Count(r.Context(), alerts.Filter{}); err != nil {
		respondError(w, http.StatusServiceUnavailable, "alert store unavailable", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ready",
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
	})
}

// getUpgrader builds the websocket upgrader with origin checking and a
// handshake timeout against slow clients.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates connection origins against the configured
// CORS origins. Browser websockets always send Origin; an empty Origin is a
// non-browser client and is allowed, the data is read-only alerts.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().Str("origin", origin).Msg("websocket connection rejected: origin not allowed")
	return false
}

// WebSocket handles GET /v1/alerts/ws, upgrading to the live alert feed.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "websocket service unavailable", nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("websocket upgrade error")
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}
