// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

/*
Package main is the entry point for the Wayfarer server application.

Wayfarer ingests GPS telemetry from tourist safety devices, detects movement
anomalies (prolonged stillness, implausible position jumps), and raises
alerts that dashboards consume over REST and websocket.

# Application Architecture

The server implements a layered architecture with Suture v4 process
supervision:

	RootSupervisor ("wayfarer")
	├── DetectionSupervisor ("detection-layer")
	│   └── Anomaly Poller (rule evaluation over recent pings)
	├── MessagingSupervisor ("messaging-layer")
	│   └── WebSocket Hub (real-time alert feed)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (ingestion, panic, alerts, health)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog with level/format from configuration
 3. Alert store: in-memory or BadgerDB persistence (ALERT_STORE)
 4. Telemetry buffer: bounded in-memory ring of recent pings
 5. Detection rules: stillness and jump rules tuned from configuration
 6. Notifiers: webhook and NATS alert publishing (optional)
 7. Supervisor tree: poller, hub, and HTTP server under supervision

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest
priority wins):
  - Environment variables
  - Config file (config.yaml, or CONFIG_PATH)
  - Built-in defaults

Common settings:

	HTTP_PORT=8080
	BUFFER_CAPACITY=2000
	DETECTION_ENABLED=true
	DETECTION_INTERVAL=3s
	DETECTION_STILL_THRESHOLD=300
	DETECTION_MAX_SPEED_KMH=250
	ALERT_STORE=memory            # or badger + ALERT_STORE_PATH
	WEBHOOK_ENABLED=true WEBHOOK_URL=https://hooks.example.com/wayfarer
	NATS_ENABLED=true NATS_URL=nats://127.0.0.1:4222

# Signal Handling

The server handles graceful shutdown on SIGINT and SIGTERM:
  - Stops accepting new connections
  - Waits for in-flight requests to complete (10s timeout)
  - Stops the poller and closes websocket clients
  - Closes the alert store and notifier connections
*/
package main
