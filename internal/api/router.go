// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/wayfarer/internal/middleware"
)

// Router wires handlers and middleware into the HTTP routing tree.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{
		handler:       handler,
		chiMiddleware: mw,
	}
}

// Setup configures all HTTP routes using the Chi router.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight works

	// Health endpoints with permissive rate limiting for monitors.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// Device-facing ingestion endpoints.
	r.Route("/v1/location", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitIngest())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Post("/", router.handler.IngestLocation)
	})

	r.Route("/v1/panic", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitPanic())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Post("/", router.handler.Panic)
	})

	// Dashboard-facing read and acknowledge endpoints.
	r.Route("/v1/locations", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Get("/", router.handler.ListLocations)
	})

	r.Route("/v1/alerts", func(r chi.Router) {
		r.Use(APISecurityHeaders())

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.Use(middleware.PrometheusMetrics)
			r.Get("/", router.handler.ListAlerts)
			r.Get("/stats", router.handler.AlertStats)
			r.Post("/{id}/acknowledge", router.handler.AcknowledgeAlert)
		})

		r.With(router.chiMiddleware.RateLimitWebSocket()).Get("/ws", router.handler.WebSocket)
	})

	// Observability.
	r.Handle("/metrics", promhttp.Handler())

	return r
}
