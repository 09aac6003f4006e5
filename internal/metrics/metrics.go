// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roomkit_connected_clients",
			Help: "Current number of connected websocket clients",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roomkit_active_room_sessions",
			Help: "Current number of joined room sessions",
		},
	)

	ActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roomkit_active_rooms",
			Help: "Current number of rooms with at least one session",
		},
	)

	// Room protocol metrics
	JoinsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomkit_room_joins_total",
			Help: "Total number of room join attempts",
		},
		[]string{"outcome"}, // "ok", "unauthorized_token", "forbidden", "room_full", ...
	)

	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomkit_room_events_total",
			Help: "Total number of inbound room events dispatched",
		},
		[]string{"event"},
	)

	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomkit_room_broadcasts_total",
			Help: "Total number of messages fanned out to room members",
		},
		[]string{"event"},
	)

	ThrottleDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomkit_cursor_throttle_drops_total",
			Help: "Cursor updates dropped by the per-user rate limit",
		},
	)

	SlowConsumerDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomkit_slow_consumer_drops_total",
			Help: "Broadcasts dropped because a client send buffer was full",
		},
	)

	ReplyErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomkit_reply_errors_total",
			Help: "Total number of error replies sent to clients",
		},
		[]string{"reason"},
	)

	// Store metrics
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomkit_store_operations_total",
			Help: "Total number of store operations",
		},
		[]string{"operation", "outcome"}, // outcome: "ok", "domain_error", "error"
	)

	// Bridge metrics
	BridgePublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomkit_bridge_published_total",
			Help: "Broadcasts mirrored to the cross-node bridge",
		},
	)

	BridgeReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomkit_bridge_received_total",
			Help: "Broadcasts received from other nodes via the bridge",
		},
	)

	BridgeSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomkit_bridge_suppressed_total",
			Help: "Bridge messages dropped because this node published them",
		},
	)
)
