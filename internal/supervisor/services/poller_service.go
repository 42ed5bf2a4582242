// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

package services

import (
	"context"
)

// AnomalyPoller matches *detection.Poller's RunWithContext method. The
// interface keeps this package free of a detection import, so service
// wrappers stay dependency-light and mockable.
type AnomalyPoller interface {
	// RunWithContext runs the detection loop until the context is canceled.
	RunWithContext(ctx context.Context) error
}

// PollerService wraps the anomaly poller as a supervised service. The
// poller's RunWithContext already follows the suture.Service pattern, so
// the wrapper delegates and provides a name for logging.
type PollerService struct {
	poller AnomalyPoller
	name   string
}

// NewPollerService creates a new anomaly poller service wrapper.
func NewPollerService(poller AnomalyPoller) *PollerService {
	return &PollerService{
		poller: poller,
		name:   "anomaly-poller",
	}
}

// Serve implements suture.Service. Returns ctx.Err() on normal shutdown.
func (p *PollerService) Serve(ctx context.Context) error {
	return p.poller.RunWithContext(ctx)
}

// String implements fmt.Stringer for logging.
func (p *PollerService) String() string {
	return p.name
}
