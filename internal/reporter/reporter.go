// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

// Package reporter implements the device-side panic client: it posts panic
// reports to a Wayfarer server with bounded retries, rate limiting, and a
// circuit breaker around the outbound HTTP path.
package reporter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/wayfarer/internal/logging"
	"github.com/tomtom215/wayfarer/internal/metrics"
	"github.com/tomtom215/wayfarer/internal/telemetry"
)

// ErrRetriesExhausted is returned when every attempt to deliver a panic
// report failed. The last transport error is wrapped alongside it.
var ErrRetriesExhausted = errors.New("panic report retries exhausted")

// DefaultMaxAttempts bounds delivery attempts per report.
const DefaultMaxAttempts = 3

// defaultBackoffBase is the unit of the linear backoff schedule: the wait
// after attempt n is n times this value (1s, 2s, 3s, ...).
const defaultBackoffBase = time.Second

// Config holds reporter settings.
type Config struct {
	// BaseURL of the Wayfarer server, e.g. "https://wayfarer.example.com".
	BaseURL string

	// MaxAttempts per report. Defaults to DefaultMaxAttempts.
	MaxAttempts int

	// Timeout per HTTP request. Defaults to 10s.
	Timeout time.Duration

	// RatePerSecond caps outbound requests. Defaults to 10.
	RatePerSecond float64
}

// PanicReport is the payload sent to the panic ingress.
type PanicReport struct {
	DeviceID   string  `json:"deviceId"`
	TouristRef string  `json:"touristRef,omitempty"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Message    string  `json:"message,omitempty"`
}

// Receipt is the server's acknowledgment of a panic report.
type Receipt struct {
	Status  string `json:"status"`
	AlertID string `json:"alertId"`
}

// permanentError marks a failure that retrying cannot fix, such as a
// validation rejection. The retry loop stops immediately on these.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Reporter delivers panic reports to a Wayfarer server.
//
// DETERMINISM NOTE: The circuit breaker uses real time (via sony/gobreaker)
// for its interval and timeout calculations. This is intentional for
// production resilience; tests exercise the retry loop with the breaker in
// its closed state and a shortened backoff base.
type Reporter struct {
	baseURL     string
	maxAttempts int
	client      *http.Client
	limiter     *rate.Limiter
	cb          *gobreaker.CircuitBreaker[*Receipt]

	// backoffBase is overridable in tests to keep the retry loop fast.
	backoffBase time.Duration
}

// New creates a Reporter for the given server.
func New(cfg Config) *Reporter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 10
	}

	burst := int(cfg.RatePerSecond)
	if burst < 1 {
		burst = 1
	}

	cbName := "panic-reporter"
	metrics.SetCircuitBreakerState(cbName, 0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[*Receipt](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		// Opens when failure rate >= 60% with minimum 10 requests.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")
			metrics.SetCircuitBreakerState(name, stateToFloat(to))
			metrics.RecordCircuitBreakerTransition(name, fromStr, toStr)
		},
	})

	return &Reporter{
		baseURL:     cfg.BaseURL,
		maxAttempts: cfg.MaxAttempts,
		client:      &http.Client{Timeout: cfg.Timeout},
		limiter:     rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst),
		cb:          cb,
		backoffBase: defaultBackoffBase,
	}
}

// Report delivers a location ping, retrying transient failures with a
// linear backoff (1s, 2s, 3s, ...). Returns an error wrapping
// ErrRetriesExhausted once all attempts are spent; the ping is dropped.
func (r *Reporter) Report(ctx context.Context, ping telemetry.Ping) error {
	_, err := r.deliver(ctx, ping.DeviceID, func(ctx context.Context) (*Receipt, error) {
		return r.send(ctx, "/v1/location", ping)
	})
	return err
}

// ReportAsync delivers a location ping in the background, fire-and-forget.
// The caller's context is not used; delivery outlives the trigger.
func (r *Reporter) ReportAsync(ping telemetry.Ping) {
	go func() {
		// Generous ceiling covering all attempts plus backoff.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if err := r.Report(ctx, ping); err != nil {
			logging.Error().Err(err).
				Str("device_id", ping.DeviceID).
				Msg("background location report failed")
		}
	}()
}

// Panic delivers a panic report with the same retry policy as Report and
// returns the server's receipt carrying the created alert ID.
func (r *Reporter) Panic(ctx context.Context, report PanicReport) (*Receipt, error) {
	return r.deliver(ctx, report.DeviceID, func(ctx context.Context) (*Receipt, error) {
		return r.send(ctx, "/v1/panic", report)
	})
}

// deliver runs the retry loop around a single-attempt send function.
func (r *Reporter) deliver(ctx context.Context, deviceID string, attemptFn func(context.Context) (*Receipt, error)) (*Receipt, error) {
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		receipt, err := r.cb.Execute(func() (*Receipt, error) {
			return attemptFn(ctx)
		})
		if err == nil {
			metrics.RecordPanicReport("success")
			logging.Debug().
				Str("device_id", deviceID).
				Int("attempt", attempt).
				Msg("report delivered")
			return receipt, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			metrics.RecordPanicReport("rejected")
			return nil, perm.err
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordPanicReport("rejected")
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Report rejected")
			return nil, err
		}

		metrics.RecordPanicReport("failure")
		lastErr = err
		logging.Warn().Err(err).
			Str("device_id", deviceID).
			Int("attempt", attempt).
			Int("max_attempts", r.maxAttempts).
			Msg("report attempt failed")

		if attempt < r.maxAttempts {
			if err := sleepCtx(ctx, time.Duration(attempt)*r.backoffBase); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, r.maxAttempts, lastErr)
}

// send performs a single POST of a JSON payload to the given path.
func (r *Reporter) send(ctx context.Context, path string, payload interface{}) (*Receipt, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &permanentError{err: fmt.Errorf("encode report: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, &permanentError{err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post panic: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))

		// Client errors other than timeout and throttling will fail the
		// same way on every retry.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 &&
			resp.StatusCode != http.StatusRequestTimeout &&
			resp.StatusCode != http.StatusTooManyRequests {
			return nil, &permanentError{err: err}
		}
		return nil, err
	}

	var receipt Receipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return &receipt, nil
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
