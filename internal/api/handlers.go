// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/driftlabs/roomkit/internal/logging"
)

// healthPayload is the JSON body of the health endpoints.
type healthPayload struct {
	Status string `json:"status"`
}

// statsPayload is a lightweight operational snapshot, cheaper to consume
// than the full Prometheus scrape.
type statsPayload struct {
	Rooms    int `json:"rooms"`
	Sessions int `json:"sessions"`
}

func (rt *Router) healthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthPayload{Status: "ok"})
}

func (rt *Router) healthReady(w http.ResponseWriter, _ *http.Request) {
	// The process is ready once the router is serving; the hub carries
	// no startup phase of its own.
	writeJSON(w, http.StatusOK, healthPayload{Status: "ok"})
}

func (rt *Router) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statsPayload{
		Rooms:    rt.hub.RoomCount(),
		Sessions: rt.hub.TotalSessions(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
	}
}
