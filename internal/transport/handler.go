// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package transport

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/driftlabs/roomkit/internal/logging"
	"github.com/driftlabs/roomkit/internal/room"
)

// Config tunes the websocket endpoint.
type Config struct {
	// SendBuffer is the per-connection outbound frame buffer.
	SendBuffer int

	// AllowedOrigins restricts the Origin header on upgrade. Empty, or a
	// list containing "*", allows any origin (development mode).
	AllowedOrigins []string
}

// Handler upgrades HTTP requests to websocket connections and serves
// them until the socket closes.
type Handler struct {
	deps     room.Deps
	cfg      Config
	upgrader websocket.Upgrader
}

// NewHandler builds the websocket endpoint handler.
func NewHandler(deps room.Deps, cfg Config) *Handler {
	h := &Handler{deps: deps, cfg: cfg}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients (SDKs, health probes) send no Origin.
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	logging.Debug().Str("remote_addr", r.RemoteAddr).Msg("websocket client connected")
	conn := newConn(ws, h.deps, h.cfg.SendBuffer)
	conn.Run(r.Context())
	logging.Debug().Str("remote_addr", r.RemoteAddr).Msg("websocket client disconnected")
}
