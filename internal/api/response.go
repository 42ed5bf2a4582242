// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/wayfarer/internal/logging"
)

// itemsResponse wraps list results so the payload stays extensible.
type itemsResponse struct {
	Items interface{} `json:"items"`
}

// statusResponse is the body of simple acknowledgment replies.
type statusResponse struct {
	Status  string `json:"status"`
	AlertID string `json:"alertId,omitempty"`
}

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes data as JSON with the given status. Encoding failures
// are logged but not surfaced; headers are already sent.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// respondError sends an error reply and logs the underlying cause if any.
func respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		logging.Error().Err(err).Int("status", status).Msg("api error")
	}
	writeJSON(w, status, errorResponse{Error: message})
}
