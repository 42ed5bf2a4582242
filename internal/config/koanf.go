// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/wayfarer/config.yaml",
	"/etc/wayfarer/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied. Defaults load
// first and are overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Buffer: BufferConfig{
			Capacity:    2000,
			RecentLimit: 500,
		},
		Detection: DetectionConfig{
			Enabled:        true,
			Interval:       3 * time.Second,
			SnapshotLimit:  500,
			StillThreshold: 300,
			MaxSpeedKmH:    250,
		},
		Alerts: AlertsConfig{
			Store: "memory",
			Path:  "/data/wayfarer/alerts",
		},
		Notify: NotifyConfig{
			Webhook: WebhookConfig{
				Enabled:   false,
				URL:       "",
				Timeout:   10 * time.Second,
				RateLimit: 500 * time.Millisecond,
			},
			NATS: NATSConfig{
				Enabled: false,
				URL:     "nats://127.0.0.1:4222",
				Subject: "wayfarer.alerts",
			},
		},
		Reporter: ReporterConfig{
			Enabled:       false,
			BaseURL:       "",
			MaxAttempts:   3,
			Timeout:       10 * time.Second,
			RatePerSecond: 10,
		},
		Security: SecurityConfig{
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults from struct
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// HTTP_PORT -> server.port, DETECTION_INTERVAL -> detection.interval
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file, env override first.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices when
// sourced from environment variables.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated env strings to slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice from the YAML file.
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped keys return empty string so random environment variables never
// pollute the config.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",
		"environment":  "server.environment",

		// Buffer mappings
		"buffer_capacity":     "buffer.capacity",
		"buffer_recent_limit": "buffer.recent_limit",

		// Detection mappings
		"detection_enabled":         "detection.enabled",
		"detection_interval":        "detection.interval",
		"detection_snapshot_limit":  "detection.snapshot_limit",
		"detection_still_threshold": "detection.still_threshold",
		"detection_max_speed_kmh":   "detection.max_speed_kmh",

		// Alert store mappings
		"alert_store":      "alerts.store",
		"alert_store_path": "alerts.path",

		// Webhook notifier mappings
		"webhook_enabled":    "notify.webhook.enabled",
		"webhook_url":        "notify.webhook.url",
		"webhook_timeout":    "notify.webhook.timeout",
		"webhook_rate_limit": "notify.webhook.rate_limit",

		// NATS notifier mappings
		"nats_enabled": "notify.nats.enabled",
		"nats_url":     "notify.nats.url",
		"nats_subject": "notify.nats.subject",

		// Reporter mappings
		"reporter_enabled":         "reporter.enabled",
		"reporter_base_url":        "reporter.base_url",
		"reporter_max_attempts":    "reporter.max_attempts",
		"reporter_timeout":         "reporter.timeout",
		"reporter_rate_per_second": "reporter.rate_per_second",

		// Security mappings
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"disable_rate_limit":  "security.rate_limit_disabled",
		"cors_origins":        "security.cors_origins",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	return ""
}
