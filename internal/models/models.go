// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

// Package models defines the collaboration domain entities shared across
// the room session protocol, persistence, and the wire format.
package models

import (
	"time"

	"github.com/goccy/go-json"
)

// Role is a room membership role. Roles are fixed for a session's
// lifetime; re-evaluation mid-session is not supported.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Valid reports whether the role is part of the membership model.
func (r Role) Valid() bool {
	switch r {
	case RoleViewer, RoleMember, RoleAdmin:
		return true
	}
	return false
}

// Identity is the authenticated participant attached to a session.
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Color       string `json:"color"`
}

// Organization owns rooms and gates plan features.
type Organization struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Features map[string]bool `json:"features"`
}

// HasFeature reports whether the org's plan includes a feature.
// A nil organization (personal rooms) has no gated features enabled.
func (o *Organization) HasFeature(name string) bool {
	if o == nil {
		return false
	}
	return o.Features[name]
}

// FeatureComments gates comment creation.
const FeatureComments = "comments"

// Comment is a threaded room comment with its reactions.
type Comment struct {
	ID        string          `json:"id"`
	RoomID    string          `json:"room_id"`
	UserID    string          `json:"user_id"`
	ParentID  string          `json:"parent_id,omitempty"`
	Body      string          `json:"body"`
	Position  json.RawMessage `json:"position,omitempty"`
	Resolved  bool            `json:"resolved"`
	Reactions []Reaction      `json:"reactions,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Reaction is one user's emoji reaction on a comment.
type Reaction struct {
	UserID    string    `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// ActivityEntry is one row of a room's activity feed.
type ActivityEntry struct {
	ID        string          `json:"id"`
	RoomID    string          `json:"room_id"`
	UserID    string          `json:"user_id"`
	Kind      string          `json:"kind"`
	Detail    json.RawMessage `json:"detail,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Activity kinds emitted by room mutations.
const (
	ActivityCommentCreated  = "comment_created"
	ActivityCommentUpdated  = "comment_updated"
	ActivityCommentDeleted  = "comment_deleted"
	ActivityCommentResolved = "comment_resolved"
	ActivityReactionAdded   = "reaction_added"
	ActivityReactionRemoved = "reaction_removed"
)

// Room is the minimal room record the session protocol needs.
// Full room CRUD lives outside this service.
type Room struct {
	ID    string `json:"id"`
	OrgID string `json:"org_id,omitempty"`
}
