// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

// Command reporter is the device-side client. It posts a location ping or a
// panic report to a Wayfarer server, with the retry, rate-limit, and circuit
// breaker behavior of the reporter package.
//
// Usage:
//
//	reporter -device D1 -lat 28.6129 -lon 77.2295
//	reporter -panic -device D1 -tourist T42 -lat 28.6129 -lon 77.2295 -message "lost near gate 3"
//
// Server address and retry settings come from the reporter section of the
// configuration (REPORTER_BASE_URL and friends); -server overrides the URL.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/tomtom215/wayfarer/internal/config"
	"github.com/tomtom215/wayfarer/internal/logging"
	"github.com/tomtom215/wayfarer/internal/reporter"
	"github.com/tomtom215/wayfarer/internal/telemetry"
)

func main() {
	var (
		server   = flag.String("server", "", "Wayfarer server base URL (overrides REPORTER_BASE_URL)")
		deviceID = flag.String("device", "", "device identifier (required)")
		tourist  = flag.String("tourist", "", "tourist reference")
		lat      = flag.Float64("lat", 0, "latitude in decimal degrees")
		lon      = flag.Float64("lon", 0, "longitude in decimal degrees")
		isPanic  = flag.Bool("panic", false, "send a panic report instead of a location ping")
		message  = flag.String("message", "", "free-text message attached to a panic report")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	baseURL := cfg.Reporter.BaseURL
	if *server != "" {
		baseURL = *server
	}
	if baseURL == "" {
		fmt.Fprintln(os.Stderr, "no server URL: set -server or REPORTER_BASE_URL")
		os.Exit(2)
	}
	if *deviceID == "" {
		fmt.Fprintln(os.Stderr, "missing required -device flag")
		flag.Usage()
		os.Exit(2)
	}

	r := reporter.New(reporter.Config{
		BaseURL:       baseURL,
		MaxAttempts:   cfg.Reporter.MaxAttempts,
		Timeout:       cfg.Reporter.Timeout,
		RatePerSecond: cfg.Reporter.RatePerSecond,
	})

	ctx := context.Background()

	if *isPanic {
		receipt, err := r.Panic(ctx, reporter.PanicReport{
			DeviceID:   *deviceID,
			TouristRef: *tourist,
			Lat:        *lat,
			Lon:        *lon,
			Message:    *message,
		})
		if err != nil {
			logging.Fatal().Err(err).Str("device_id", *deviceID).Msg("Panic report failed")
		}
		logging.Info().
			Str("device_id", *deviceID).
			Str("alert_id", receipt.AlertID).
			Msg("Panic report acknowledged")
		fmt.Println(receipt.AlertID)
		return
	}

	if err := r.Report(ctx, telemetry.Ping{
		DeviceID:   *deviceID,
		TouristRef: *tourist,
		Lat:        *lat,
		Lon:        *lon,
	}); err != nil {
		logging.Fatal().Err(err).Str("device_id", *deviceID).Msg("Location report failed")
	}
	logging.Info().Str("device_id", *deviceID).Msg("Location reported")
}
