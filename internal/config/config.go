// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

package config

import (
	"time"
)

// Config holds all application configuration.
//
// Loading order (Koanf v2):
//  1. Defaults: built-in sensible defaults for every setting
//  2. Config file: optional YAML file (config.yaml)
//  3. Environment variables: override any setting
//
// Config is immutable after Load() and safe for concurrent reads.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Buffer    BufferConfig    `koanf:"buffer"`
	Detection DetectionConfig `koanf:"detection"`
	Alerts    AlertsConfig    `koanf:"alerts"`
	Notify    NotifyConfig    `koanf:"notify"`
	Reporter  ReporterConfig  `koanf:"reporter"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
//
// Environment variables:
//   - HTTP_HOST: bind address (default: 0.0.0.0)
//   - HTTP_PORT: listen port (default: 8080)
//   - HTTP_TIMEOUT: request read/write timeout (default: 30s)
//   - ENVIRONMENT: development or production
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment" validate:"oneof=development production"`
}

// BufferConfig holds the in-memory telemetry buffer settings.
//
// Environment variables:
//   - BUFFER_CAPACITY: maximum retained pings (default: 2000)
//   - BUFFER_RECENT_LIMIT: default window served to readers (default: 500)
type BufferConfig struct {
	Capacity    int `koanf:"capacity" validate:"min=1"`
	RecentLimit int `koanf:"recent_limit" validate:"min=1"`
}

// DetectionConfig holds anomaly poller and rule settings.
//
// Environment variables:
//   - DETECTION_ENABLED: run the anomaly poller (default: true)
//   - DETECTION_INTERVAL: cycle cadence (default: 3s)
//   - DETECTION_SNAPSHOT_LIMIT: pings read per cycle (default: 500)
//   - DETECTION_STILL_THRESHOLD: stillness threshold in seconds (default: 300)
//   - DETECTION_MAX_SPEED_KMH: plausible maximum speed (default: 250)
type DetectionConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Interval       time.Duration `koanf:"interval"`
	SnapshotLimit  int           `koanf:"snapshot_limit" validate:"min=1"`
	StillThreshold int           `koanf:"still_threshold" validate:"min=1"`
	MaxSpeedKmH    float64       `koanf:"max_speed_kmh" validate:"gt=0"`
}

// AlertsConfig selects and configures the alert store backend.
//
// Environment variables:
//   - ALERT_STORE: memory or badger (default: memory)
//   - ALERT_STORE_PATH: BadgerDB directory when store=badger
type AlertsConfig struct {
	Store string `koanf:"store" validate:"oneof=memory badger"`
	Path  string `koanf:"path"`
}

// NotifyConfig holds outbound alert notification settings.
type NotifyConfig struct {
	Webhook WebhookConfig `koanf:"webhook"`
	NATS    NATSConfig    `koanf:"nats"`
}

// WebhookConfig holds webhook notifier settings.
//
// Environment variables:
//   - WEBHOOK_ENABLED, WEBHOOK_URL, WEBHOOK_TIMEOUT, WEBHOOK_RATE_LIMIT
//
// Headers (e.g. auth tokens for the downstream dispatcher) are set in the
// YAML config file under notify.webhook.headers.
type WebhookConfig struct {
	Enabled   bool              `koanf:"enabled"`
	URL       string            `koanf:"url"`
	Headers   map[string]string `koanf:"headers"`
	Timeout   time.Duration     `koanf:"timeout"`
	RateLimit time.Duration     `koanf:"rate_limit"`
}

// NATSConfig holds NATS alert publishing settings.
//
// Environment variables:
//   - NATS_ENABLED, NATS_URL, NATS_SUBJECT
type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
}

// ReporterConfig holds the outbound location reporter settings, used by
// deployments where this process also forwards device pings upstream.
//
// Environment variables:
//   - REPORTER_ENABLED, REPORTER_BASE_URL, REPORTER_MAX_ATTEMPTS,
//     REPORTER_TIMEOUT, REPORTER_RATE_PER_SECOND
type ReporterConfig struct {
	Enabled       bool          `koanf:"enabled"`
	BaseURL       string        `koanf:"base_url"`
	MaxAttempts   int           `koanf:"max_attempts" validate:"min=1,max=10"`
	Timeout       time.Duration `koanf:"timeout"`
	RatePerSecond float64       `koanf:"rate_per_second" validate:"gt=0"`
}

// SecurityConfig holds API hardening settings.
//
// Environment variables:
//   - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT
//   - CORS_ORIGINS: comma-separated list of allowed origins
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds log output settings.
//
// Environment variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json or console (default: json)
//   - LOG_CALLER: include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}
