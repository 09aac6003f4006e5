// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package protocol

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// RoomTopicPrefix scopes room channels. A topic is "room:<room_id>".
const RoomTopicPrefix = "room:"

// Channel-control events shared by both directions.
const (
	EventJoin      = "join"
	EventLeave     = "leave"
	EventReply     = "reply"
	EventHeartbeat = "hb"
)

// Server -> client events.
const (
	EventPresenceState   = "presence_state"
	EventPresenceDiff    = "presence_diff"
	EventRoomState       = "room_state"
	EventCommentCreated  = "comment:created"
	EventCommentUpdated  = "comment:updated"
	EventCommentDeleted  = "comment:deleted"
	EventCommentResolved = "comment:resolved"
	EventReactionAdded   = "reaction:added"
	EventReactionRemoved = "reaction:removed"
	EventActivityCreated = "activity:created"
)

// Bidirectional events: sent by clients, rebroadcast by the server.
const (
	EventCursorUpdate    = "cursor:update"
	EventSelectionUpdate = "selection:update"
	EventTypingStart     = "typing:start"
	EventTypingStop      = "typing:stop"
)

// Client -> server events.
const (
	EventPresenceUpdate = "presence:update"
	EventCommentCreate  = "comment:create"
	EventCommentUpdate  = "comment:update"
	EventCommentDelete  = "comment:delete"
	EventCommentResolve = "comment:resolve"
	EventReactionAdd    = "reaction:add"
	EventReactionRemove = "reaction:remove"
	EventReactionToggle = "reaction:toggle"
	EventActivityList   = "activity:list"
)

// Message is the wire envelope for every frame in both directions.
type Message struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Ref     string          `json:"ref,omitempty"`
}

// NewMessage builds an envelope, marshaling payload to JSON.
// Panics are not used; marshal failures surface as an error.
func NewMessage(topic, event string, payload interface{}, ref string) (Message, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Message{}, fmt.Errorf("marshal %s payload: %w", event, err)
		}
		raw = b
	}
	return Message{Topic: topic, Event: event, Payload: raw, Ref: ref}, nil
}

// RoomID extracts the room identifier from a "room:<id>" topic.
// Returns false for topics outside the room namespace or with an empty id.
func RoomID(topic string) (string, bool) {
	id, ok := strings.CutPrefix(topic, RoomTopicPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Reply statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Reply is the payload of an EventReply frame.
type Reply struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response,omitempty"`
}

// OKReply builds a successful reply envelope echoing ref.
func OKReply(topic, ref string, response interface{}) (Message, error) {
	var raw json.RawMessage
	if response != nil {
		b, err := json.Marshal(response)
		if err != nil {
			return Message{}, fmt.Errorf("marshal ok reply: %w", err)
		}
		raw = b
	}
	return NewMessage(topic, EventReply, Reply{Status: StatusOK, Response: raw}, ref)
}

// ErrReply builds an error reply envelope carrying a reason payload.
func ErrReply(topic, ref string, reason Reason) (Message, error) {
	return ErrReplyPayload(topic, ref, ReasonPayload{Reason: reason})
}

// ErrReplyPayload builds an error reply with per-field validation detail.
func ErrReplyPayload(topic, ref string, payload ReasonPayload) (Message, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal error reply: %w", err)
	}
	return NewMessage(topic, EventReply, Reply{Status: StatusError, Response: b}, ref)
}
