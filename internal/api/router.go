// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/driftlabs/roomkit/internal/config"
	"github.com/driftlabs/roomkit/internal/room"
)

// Router assembles the HTTP surface: the websocket upgrade endpoint,
// health probes, and the Prometheus scrape endpoint.
type Router struct {
	cfg config.ServerConfig
	ws  http.Handler
	hub *room.Hub
}

// NewRouter builds the HTTP router around the websocket handler.
func NewRouter(cfg config.ServerConfig, ws http.Handler, hub *room.Hub) *Router {
	return &Router{cfg: cfg, ws: ws, hub: hub}
}

// Handler returns the assembled chi handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Group(func(r chi.Router) {
		limit := rt.cfg.UpgradeRateLimit
		if limit <= 0 {
			limit = 60
		}
		r.Use(httprate.LimitByIP(limit, time.Minute))
		r.Get("/ws", rt.ws.ServeHTTP)
	})

	r.Get("/healthz", rt.healthLive)
	r.Get("/readyz", rt.healthReady)
	r.Get("/stats", rt.stats)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
