// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/wayfarer/internal/alerts"
	"github.com/tomtom215/wayfarer/internal/api"
	"github.com/tomtom215/wayfarer/internal/config"
	"github.com/tomtom215/wayfarer/internal/detection"
	"github.com/tomtom215/wayfarer/internal/logging"
	"github.com/tomtom215/wayfarer/internal/supervisor"
	"github.com/tomtom215/wayfarer/internal/supervisor/services"
	"github.com/tomtom215/wayfarer/internal/telemetry"
	ws "github.com/tomtom215/wayfarer/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize zerolog with configuration
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Wayfarer with supervisor tree")
	logging.Info().
		Str("alert_store", cfg.Alerts.Store).
		Int("buffer_capacity", cfg.Buffer.Capacity).
		Dur("detection_interval", cfg.Detection.Interval).
		Msg("Configuration loaded")

	// Initialize the alert store
	store, err := newAlertStore(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize alert store")
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing alert store")
			}
		}()
	}
	logging.Info().Str("backend", cfg.Alerts.Store).Msg("Alert store initialized")

	// Telemetry buffer holds the recent ping window the poller inspects.
	buffer := telemetry.NewBuffer(cfg.Buffer.Capacity)

	// Detection rules tuned from configuration.
	rules, err := buildRules(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to configure detection rules")
	}

	poller := detection.NewPoller(buffer, store, rules, detection.PollerConfig{
		Interval:      cfg.Detection.Interval,
		SnapshotLimit: cfg.Detection.SnapshotLimit,
	})

	// Create WebSocket hub for real-time alert delivery (before the poller
	// starts so broadcasts have somewhere to go).
	wsHub := ws.NewHub()
	poller.SetBroadcaster(wsHub)

	handler := api.NewHandler(buffer, store, poller, wsHub, cfg.Security.CORSOrigins)

	// Optional outbound notifiers, shared by the poller and panic ingress.
	if cfg.Notify.Webhook.Enabled {
		webhook := alerts.NewWebhookNotifier(alerts.WebhookConfig{
			WebhookURL:  cfg.Notify.Webhook.URL,
			Headers:     cfg.Notify.Webhook.Headers,
			Enabled:     true,
			RateLimitMs: int(cfg.Notify.Webhook.RateLimit.Milliseconds()),
		})
		poller.AddNotifier(webhook)
		handler.AddNotifier(webhook)
		logging.Info().Str("url", cfg.Notify.Webhook.URL).Msg("Webhook notifier registered")
	}

	if cfg.Notify.NATS.Enabled {
		natsNotifier, err := alerts.NewNATSNotifier(alerts.NATSConfig{
			URL:     cfg.Notify.NATS.URL,
			Subject: cfg.Notify.NATS.Subject,
			Enabled: true,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer natsNotifier.Close()
		poller.AddNotifier(natsNotifier)
		handler.AddNotifier(natsNotifier)
		logging.Info().
			Str("url", cfg.Notify.NATS.URL).
			Str("subject", cfg.Notify.NATS.Subject).
			Msg("NATS notifier registered")
	}

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	mwConfig := api.DefaultChiMiddlewareConfig()
	mwConfig.CORSAllowedOrigins = cfg.Security.CORSOrigins
	mwConfig.RateLimitRequests = cfg.Security.RateLimitReqs
	mwConfig.RateLimitWindow = cfg.Security.RateLimitWindow
	mwConfig.RateLimitDisabled = cfg.Security.RateLimitDisabled

	router := api.NewRouter(handler, api.NewChiMiddleware(mwConfig))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for sutureslog compatibility.
	slogLogger := logging.NewSlogLogger()

	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	if cfg.Detection.Enabled {
		tree.AddDetectionService(services.NewPollerService(poller))
	} else {
		logging.Warn().Msg("Anomaly detection is DISABLED (DETECTION_ENABLED=false); ingestion and panic ingress remain active")
	}
	tree.AddMessagingService(services.NewHubService(wsHub))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("Services added to supervisor tree")

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}

// newAlertStore builds the configured alert store backend.
func newAlertStore(cfg *config.Config) (alerts.Store, error) {
	switch cfg.Alerts.Store {
	case "badger":
		return alerts.NewBadgerStore(cfg.Alerts.Path)
	case "memory":
		return alerts.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown alert store backend %q", cfg.Alerts.Store)
	}
}

// buildRules constructs the detection rules with thresholds from config.
func buildRules(cfg *config.Config) ([]detection.Rule, error) {
	noMovement := detection.NewNoMovementRule()
	stillCfg, err := json.Marshal(map[string]int{
		"still_threshold_seconds": cfg.Detection.StillThreshold,
	})
	if err != nil {
		return nil, err
	}
	if err := noMovement.Configure(stillCfg); err != nil {
		return nil, fmt.Errorf("no-movement rule: %w", err)
	}

	suddenJump := detection.NewSuddenJumpRule()
	jumpCfg, err := json.Marshal(map[string]float64{
		"max_speed_kmh": cfg.Detection.MaxSpeedKmH,
	})
	if err != nil {
		return nil, err
	}
	if err := suddenJump.Configure(jumpCfg); err != nil {
		return nil, fmt.Errorf("sudden-jump rule: %w", err)
	}

	return []detection.Rule{noMovement, suddenJump}, nil
}
