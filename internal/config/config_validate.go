// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

package config

import (
	"fmt"
	"net/url"

	"github.com/tomtom215/wayfarer/internal/validation"
)

// Validate checks that configuration is complete and internally consistent.
// Struct tags cover ranges and enumerations; cross-field requirements are
// checked here.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	if c.Alerts.Store == "badger" && c.Alerts.Path == "" {
		return fmt.Errorf("ALERT_STORE_PATH is required when ALERT_STORE=badger")
	}

	if c.Notify.Webhook.Enabled {
		if c.Notify.Webhook.URL == "" {
			return fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_ENABLED=true")
		}
		if err := validateHTTPURL(c.Notify.Webhook.URL, "WEBHOOK_URL"); err != nil {
			return err
		}
	}

	if c.Notify.NATS.Enabled {
		if err := validateNATSURL(c.Notify.NATS.URL); err != nil {
			return fmt.Errorf("NATS_URL is invalid: %w", err)
		}
		if c.Notify.NATS.Subject == "" {
			return fmt.Errorf("NATS_SUBJECT is required when NATS_ENABLED=true")
		}
	}

	if c.Reporter.Enabled {
		if c.Reporter.BaseURL == "" {
			return fmt.Errorf("REPORTER_BASE_URL is required when REPORTER_ENABLED=true")
		}
		if err := validateHTTPURL(c.Reporter.BaseURL, "REPORTER_BASE_URL"); err != nil {
			return err
		}
	}

	if c.Detection.SnapshotLimit > c.Buffer.Capacity {
		return fmt.Errorf("DETECTION_SNAPSHOT_LIMIT (%d) cannot exceed BUFFER_CAPACITY (%d)",
			c.Detection.SnapshotLimit, c.Buffer.Capacity)
	}

	return nil
}

// validateHTTPURL validates a base URL for HTTP/HTTPS services.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}

	return nil
}

// validateNATSURL validates a NATS connection URL.
func validateNATSURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	validSchemes := map[string]bool{"nats": true, "tls": true, "ws": true, "wss": true}
	if !validSchemes[parsedURL.Scheme] {
		return fmt.Errorf("scheme must be nats, tls, ws, or wss, got: %s", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("host is required (e.g., localhost:4222)")
	}

	return nil
}
