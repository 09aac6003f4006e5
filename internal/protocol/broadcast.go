// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package protocol

import "github.com/goccy/go-json"

// Sender identifies the originator stamped onto relayed events.
type Sender struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Color       string `json:"color"`
}

// CursorBroadcast is the server->client cursor:update payload.
// Timestamp is unix milliseconds at relay time.
type CursorBroadcast struct {
	Sender
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	ElementID string  `json:"element_id,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

// SelectionBroadcast is the server->client selection:update payload.
type SelectionBroadcast struct {
	Sender
	Selection json.RawMessage `json:"selection"`
	ElementID string          `json:"element_id,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// TypingBroadcast is the server->client typing:start/typing:stop payload.
type TypingBroadcast struct {
	Sender
	Timestamp int64 `json:"timestamp"`
}

// PresenceMeta is one device's presence metadata for a user.
type PresenceMeta struct {
	DisplayName   string `json:"display_name"`
	Color         string `json:"color"`
	Status        string `json:"status,omitempty"`
	CursorVisible bool   `json:"cursor_visible"`
	OnlineAt      int64  `json:"online_at"`

	// Ref distinguishes devices of the same user within a room.
	Ref string `json:"ref"`
}

// PresenceEntry groups all device metas for one user id.
// Consumers that need a flat user list take the first meta (multi-device
// presence intentionally collapses to one row).
type PresenceEntry struct {
	Metas []PresenceMeta `json:"metas"`
}

// PresenceStatePayload is the full snapshot pushed on join and sync.
type PresenceStatePayload map[string]PresenceEntry

// PresenceDiffPayload carries incremental joins/leaves.
type PresenceDiffPayload struct {
	Joins  map[string]PresenceEntry `json:"joins"`
	Leaves map[string]PresenceEntry `json:"leaves"`
}
