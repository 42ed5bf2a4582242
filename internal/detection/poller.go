// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

package detection

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/wayfarer/internal/alerts"
	"github.com/tomtom215/wayfarer/internal/logging"
	"github.com/tomtom215/wayfarer/internal/metrics"
	"github.com/tomtom215/wayfarer/internal/telemetry"
)

// DefaultPollInterval is the cadence of detection cycles.
const DefaultPollInterval = 3 * time.Second

// DefaultSnapshotLimit is how many recent pings a cycle inspects.
const DefaultSnapshotLimit = 500

// PingSource supplies the recent-ping snapshot each cycle reads.
// Satisfied by *telemetry.Buffer; the error return lets tests and future
// remote sources model an unavailable snapshot.
type PingSource interface {
	Recent(ctx context.Context, limit int) ([]telemetry.Ping, error)
}

// AlertBroadcaster pushes created alerts to live subscribers.
// Satisfied by *websocket.Hub.
type AlertBroadcaster interface {
	BroadcastAlert(alert *alerts.Alert)
}

// PollerConfig configures the anomaly poller.
type PollerConfig struct {
	// Interval between detection cycles.
	Interval time.Duration

	// SnapshotLimit caps how many recent pings each cycle reads.
	SnapshotLimit int
}

// DefaultPollerConfig returns production defaults.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:      DefaultPollInterval,
		SnapshotLimit: DefaultSnapshotLimit,
	}
}

// PollerMetrics tracks poller activity for observability endpoints.
type PollerMetrics struct {
	CyclesCompleted int64            `json:"cycles_completed"`
	TicksSkipped    int64            `json:"ticks_skipped"`
	SnapshotErrors  int64            `json:"snapshot_errors"`
	StoreErrors     int64            `json:"store_errors"`
	AlertsByType    map[string]int64 `json:"alerts_by_type"`
	DevicesTracked  int              `json:"devices_tracked"`
	LastCycleAt     time.Time        `json:"last_cycle_at"`
}

// Poller periodically snapshots recent telemetry, compares each device's
// current ping against its last-seen state, and runs the anomaly rules on
// the pair. All state is owned by the Poller instance; independent pollers
// never share device state.
//
// The loop is a single goroutine, so cycles never overlap: a tick that
// fires while a cycle is still running is skipped (counted, not queued).
// Cycle failures are logged and counted; the loop itself only exits when
// its context is canceled.
type Poller struct {
	source      PingSource
	store       alerts.Store
	rules       []Rule
	notifiers   []alerts.Notifier
	broadcaster AlertBroadcaster

	interval      time.Duration
	snapshotLimit int

	// lastSeen maps deviceId to the newest observed ping. Rebuilt empty on
	// restart: the first ping per device after a restart only seeds state.
	// Touched only by the poll goroutine.
	lastSeen map[string]telemetry.Ping

	// mu guards stats, which handlers read while the loop runs.
	mu    sync.RWMutex
	stats PollerMetrics
}

// NewPoller creates a poller over the given source, store, and rules.
func NewPoller(source PingSource, store alerts.Store, rules []Rule, config PollerConfig) *Poller {
	if config.Interval <= 0 {
		config.Interval = DefaultPollInterval
	}
	if config.SnapshotLimit <= 0 {
		config.SnapshotLimit = DefaultSnapshotLimit
	}

	return &Poller{
		source:        source,
		store:         store,
		rules:         rules,
		interval:      config.Interval,
		snapshotLimit: config.SnapshotLimit,
		lastSeen:      make(map[string]telemetry.Ping),
		stats: PollerMetrics{
			AlertsByType: make(map[string]int64),
		},
	}
}

// AddNotifier registers a notifier for created alerts.
func (p *Poller) AddNotifier(n alerts.Notifier) {
	p.notifiers = append(p.notifiers, n)
}

// SetBroadcaster registers a live broadcast target for created alerts.
func (p *Poller) SetBroadcaster(b AlertBroadcaster) {
	p.broadcaster = b
}

// RunWithContext runs the poll loop until the context is canceled.
// Designed for suture supervision; returns ctx.Err() on shutdown. An
// in-flight cycle always finishes before the method returns.
func (p *Poller) RunWithContext(ctx context.Context) error {
	logger := logging.WithComponent("poller")
	logger.Info().
		Dur("interval", p.interval).
		Int("snapshot_limit", p.snapshotLimit).
		Int("rules", len(p.rules)).
		Msg("anomaly poller started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.mu.RLock()
			cycles := p.stats.CyclesCompleted
			p.mu.RUnlock()
			logger.Info().
				Int64("cycles", cycles).
				Msg("anomaly poller stopped")
			return ctx.Err()

		case <-ticker.C:
			p.RunCycle(ctx)

			// A cycle longer than the interval leaves a pending tick in
			// the channel. Drain it so late ticks are skipped, not queued.
		drain:
			for {
				select {
				case <-ticker.C:
					p.mu.Lock()
					p.stats.TicksSkipped++
					p.mu.Unlock()
					metrics.RecordSkippedTick()
				default:
					break drain
				}
			}
		}
	}
}

// RunCycle executes one detection pass. Exported so supervised runs and
// tests drive the same code path.
func (p *Poller) RunCycle(ctx context.Context) {
	start := time.Now()

	pings, err := p.source.Recent(ctx, p.snapshotLimit)
	if err != nil {
		p.mu.Lock()
		p.stats.SnapshotErrors++
		p.mu.Unlock()
		metrics.RecordDetectionError("snapshot")
		logging.Warn().Err(err).Msg("failed to snapshot recent pings, skipping cycle")
		return
	}

	for i := range pings {
		p.processPing(ctx, &pings[i])
	}

	p.mu.Lock()
	p.stats.CyclesCompleted++
	p.stats.DevicesTracked = len(p.lastSeen)
	p.stats.LastCycleAt = time.Now().UTC()
	p.mu.Unlock()
	metrics.RecordDetectionCycle(time.Since(start))
}

// processPing evaluates one ping against the device's last-seen state and
// advances the state. Only pings strictly newer than the cached state are
// evaluated, so a gap between two observations is scored at most once and
// out-of-order snapshot entries never regress the state.
func (p *Poller) processPing(ctx context.Context, current *telemetry.Ping) {
	prior, seen := p.lastSeen[current.DeviceID]

	if seen && current.Timestamp.After(prior.Timestamp) {
		for _, rule := range p.rules {
			if !rule.Enabled() {
				continue
			}
			if alert := rule.Evaluate(&prior, current); alert != nil {
				p.emit(ctx, alert)
			}
		}
	}

	if !seen || current.Timestamp.After(prior.Timestamp) {
		p.lastSeen[current.DeviceID] = *current
	}
}

// emit persists an alert and fans it out to notifiers and the broadcaster.
// Store failures are logged and counted; the cycle continues.
func (p *Poller) emit(ctx context.Context, alert *alerts.Alert) {
	created, err := p.store.Create(ctx, alert)
	if err != nil {
		p.mu.Lock()
		p.stats.StoreErrors++
		p.mu.Unlock()
		metrics.RecordDetectionError("store")
		logging.Error().Err(err).
			Str("alert_type", string(alert.Type)).
			Str("device_id", alert.DeviceID).
			Msg("failed to persist alert")
		return
	}

	p.mu.Lock()
	p.stats.AlertsByType[string(created.Type)]++
	p.mu.Unlock()

	logging.Info().
		Str("alert_id", created.ID).
		Str("alert_type", string(created.Type)).
		Str("severity", string(created.Severity)).
		Str("device_id", created.DeviceID).
		Msg("alert created")

	if p.broadcaster != nil {
		p.broadcaster.BroadcastAlert(created)
	}

	for _, n := range p.notifiers {
		if !n.Enabled() {
			continue
		}
		// Fire and forget: notification latency must not stall detection.
		go func(n alerts.Notifier) {
			if err := n.Send(context.WithoutCancel(ctx), created); err != nil {
				metrics.RecordNotifyFailure(n.Name())
				logging.Warn().Err(err).
					Str("notifier", n.Name()).
					Str("alert_id", created.ID).
					Msg("alert notification failed")
			}
		}(n)
	}
}

// Metrics returns a snapshot of poller counters.
func (p *Poller) Metrics() PollerMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := p.stats
	out.AlertsByType = make(map[string]int64, len(p.stats.AlertsByType))
	for k, v := range p.stats.AlertsByType {
		out.AlertsByType[k] = v
	}
	return out
}
