// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package room

import (
	"sync"

	"github.com/driftlabs/roomkit/internal/logging"
	"github.com/driftlabs/roomkit/internal/metrics"
	"github.com/driftlabs/roomkit/internal/protocol"
)

// Outbox delivers server->client frames for one connection. Send returns
// false when the frame was dropped (buffer full or connection gone); the
// hub records the drop and moves on rather than blocking the fan-out.
type Outbox interface {
	Send(msg protocol.Message) bool
}

// Mirror publishes local broadcasts to peer nodes. Implemented by the
// bridge; nil when running single-node.
type Mirror interface {
	Publish(roomID string, msg protocol.Message) error
}

// Hub tracks the joined sessions per room and fans broadcasts out to
// them. Fan-out preserves per-sender order: each session broadcasts from
// its own dispatch goroutine, and the hub delivers synchronously under a
// read lock.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Session]struct{}
	mirror Mirror
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Session]struct{})}
}

// SetMirror wires a cross-node mirror. Call before any session joins.
func (h *Hub) SetMirror(m Mirror) {
	h.mirror = m
}

func (h *Hub) add(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[s.roomID]
	if !ok {
		members = make(map[*Session]struct{})
		h.rooms[s.roomID] = members
		metrics.ActiveRooms.Inc()
	}
	members[s] = struct{}{}
	metrics.ActiveSessions.Inc()
}

func (h *Hub) remove(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[s.roomID]
	if !ok {
		return
	}
	if _, ok := members[s]; !ok {
		return
	}
	delete(members, s)
	metrics.ActiveSessions.Dec()
	if len(members) == 0 {
		delete(h.rooms, s.roomID)
		metrics.ActiveRooms.Dec()
	}
}

// Broadcast fans msg out to every session in the room except exclude
// (nil excludes nobody), then mirrors it to peer nodes when a mirror is
// configured.
func (h *Hub) Broadcast(roomID string, msg protocol.Message, exclude *Session) {
	h.deliver(roomID, msg, exclude)

	if h.mirror != nil {
		if err := h.mirror.Publish(roomID, msg); err != nil {
			logging.Warn().
				Err(err).
				Str("room_id", roomID).
				Str("event", msg.Event).
				Msg("bridge publish failed")
		} else {
			metrics.BridgePublished.Inc()
		}
	}
}

// BroadcastLocal fans msg out to local sessions only. Used by the bridge
// for messages that originated on another node.
func (h *Hub) BroadcastLocal(roomID string, msg protocol.Message) {
	h.deliver(roomID, msg, nil)
}

func (h *Hub) deliver(roomID string, msg protocol.Message, exclude *Session) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.rooms[roomID]
	if len(members) == 0 {
		return
	}

	metrics.BroadcastsTotal.WithLabelValues(msg.Event).Inc()
	for s := range members {
		if s == exclude {
			continue
		}
		if !s.outbox.Send(msg) {
			metrics.SlowConsumerDrops.Inc()
			logging.Debug().
				Str("room_id", roomID).
				Str("user_id", s.identity.UserID).
				Str("event", msg.Event).
				Msg("broadcast dropped for slow consumer")
		}
	}
}

// SessionCount returns the number of joined sessions in a room.
func (h *Hub) SessionCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// TotalSessions returns the number of joined sessions across all rooms.
func (h *Hub) TotalSessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, members := range h.rooms {
		total += len(members)
	}
	return total
}

// RoomCount returns the number of rooms with at least one session.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}
