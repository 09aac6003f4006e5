// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

// Package main is the entry point for the Roomkit server.
//
// Roomkit is a self-hosted real-time collaboration backend. Clients
// connect over a single WebSocket, join rooms with signed tokens, and
// exchange cursor positions, selections, typing indicators, presence,
// comments, and reactions. Comment threads and room activity persist
// across reconnects.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered sources via Koanf v2 (defaults, config
//     file, environment variables)
//  2. Persistence: BadgerDB comment and activity store, wrapped in a
//     circuit breaker
//  3. Room runtime: presence directory, cursor throttle, room quota,
//     token verifier, role enforcer, broadcast hub
//  4. Bridge (optional): cross-node broadcast relay over Watermill,
//     backed by NATS in clustered deployments
//  5. HTTP server: WebSocket endpoint plus health, stats, and
//     Prometheus metrics routes
//
// Long-running components run under a suture supervisor tree and are
// restarted on failure with exponential backoff.
//
// # Configuration
//
// Required:
//   - AUTH_JWT_SECRET: 32+ byte secret for room token verification
//
// Common:
//   - SERVER_HOST, SERVER_PORT: listen address (default 0.0.0.0:4010)
//   - STORE_BACKEND: "badger" (default) or "memory"
//   - STORE_PATH: badger data directory
//   - BRIDGE_ENABLED, BRIDGE_BACKEND, BRIDGE_URL: cross-node relay
//   - LOG_LEVEL, LOG_FORMAT: zerolog settings
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server stops
// accepting connections, in-flight requests get the configured drain
// window, then the bridge and store close.
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

	"github.com/driftlabs/roomkit/internal/api"
	"github.com/driftlabs/roomkit/internal/auth"
	"github.com/driftlabs/roomkit/internal/authz"
	"github.com/driftlabs/roomkit/internal/bridge"
	"github.com/driftlabs/roomkit/internal/config"
	"github.com/driftlabs/roomkit/internal/logging"
	"github.com/driftlabs/roomkit/internal/presence"
	"github.com/driftlabs/roomkit/internal/room"
	"github.com/driftlabs/roomkit/internal/store"
	"github.com/driftlabs/roomkit/internal/supervisor"
	"github.com/driftlabs/roomkit/internal/supervisor/services"
	"github.com/driftlabs/roomkit/internal/throttle"
	"github.com/driftlabs/roomkit/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config errors land on the default logger; logging settings
		// are part of the config that failed to load.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("store_backend", cfg.Store.Backend).
		Bool("bridge_enabled", cfg.Bridge.Enabled).
		Int("room_client_quota", cfg.Realtime.RoomClientQuota).
		Msg("Starting Roomkit")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Server exited with error")
	}
	logging.Info().Msg("Shutdown complete")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	verifier, err := auth.NewVerifier(cfg.Auth)
	if err != nil {
		return fmt.Errorf("token verifier: %w", err)
	}

	enforcer, err := authz.NewEnforcer(authz.Config{})
	if err != nil {
		return fmt.Errorf("role enforcer: %w", err)
	}

	orgs, err := auth.LoadOrgsFile(cfg.Auth.OrgsFile)
	if err != nil {
		return fmt.Errorf("load orgs: %w", err)
	}

	hub := room.NewHub()
	directory := presence.NewDirectory()

	deps := room.Deps{
		Verifier: verifier,
		Authz:    enforcer,
		Orgs:     orgs,
		Quota:    auth.NewRoomQuota(cfg.Realtime.RoomClientQuota),
		Presence: directory,
		Throttle: throttle.NewLimiter(cfg.Realtime.CursorThrottleInterval),
		Store:    st,
		Hub:      hub,

		PresenceIdleTimeout: cfg.Realtime.PresenceIdleTimeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	tree.AddRealtimeService(directory)

	if cfg.Bridge.Enabled {
		br, err := bridge.Open(cfg.Bridge, hub)
		if err != nil {
			return fmt.Errorf("open bridge: %w", err)
		}
		defer func() {
			if err := br.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing bridge")
			}
		}()
		hub.SetMirror(br)
		tree.AddRealtimeService(br)
		logging.Info().
			Str("backend", cfg.Bridge.Backend).
			Str("node_id", br.NodeID()).
			Msg("Cross-node bridge enabled")
	}

	wsHandler := transport.NewHandler(deps, transport.Config{
		SendBuffer:     cfg.Realtime.SendBuffer,
		AllowedOrigins: cfg.Server.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(cfg.Server, wsHandler, hub).Handler(),
		ReadHeaderTimeout: cfg.Server.ShutdownTimeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(srv, cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", srv.Addr).Msg("Listening")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	opts := store.Options{Path: cfg.Path}
	if cfg.Backend == "memory" {
		opts = store.Options{InMemory: true}
	}
	inner, err := store.Open(opts)
	if err != nil {
		return nil, err
	}
	return store.NewBreakerStore(inner, store.BreakerConfig{
		MaxFailures: cfg.BreakerMaxFailures,
		Timeout:     cfg.BreakerTimeout,
	}), nil
}
