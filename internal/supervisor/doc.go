// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

/*
Package supervisor provides process supervision for Wayfarer using suture v4.

The supervisor tree organizes services into three layers for failure
isolation:

	RootSupervisor ("wayfarer")
	├── DetectionSupervisor ("detection-layer")
	│   └── PollerService
	├── MessagingSupervisor ("messaging-layer")
	│   └── HubService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

This hierarchy ensures that a crash in the anomaly poller does not drop
websocket connections, and that neither affects the HTTP server's ability
to keep accepting pings and panic reports.

Crashed services are restarted automatically with exponential backoff.
Failure thresholds, decay, backoff, and the shutdown timeout are set via
TreeConfig; the defaults match suture's production defaults.

All services implement suture.Service:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Return nil to stop cleanly (no restart), return an error to be restarted,
and return promptly when the context is canceled.

Supervision events are logged through slog via the sutureslog adapter,
bridged to zerolog by internal/logging.
*/
package supervisor
