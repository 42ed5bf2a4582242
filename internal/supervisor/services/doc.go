// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

// Package services provides suture.Service wrappers for Wayfarer's
// long-running components: the HTTP server, the anomaly poller, and the
// websocket hub. Each wrapper translates the component's lifecycle into
// suture's context-aware Serve pattern and names itself for logging.
package services
