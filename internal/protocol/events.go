// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package protocol

import (
	"github.com/goccy/go-json"
)

// ClientEvent is the closed set of inbound room events. Sessions dispatch
// with an exhaustive type switch; adding a variant without handling it is
// a compile-visible gap, not a silent runtime fallthrough.
type ClientEvent interface {
	clientEvent()
}

// CursorUpdate reports a pointer position. Coordinates are client-space
// pixels; element_id optionally scopes the position to a DOM element.
type CursorUpdate struct {
	X         float64 `json:"x" validate:"gte=-1000000,lte=1000000"`
	Y         float64 `json:"y" validate:"gte=-1000000,lte=1000000"`
	ElementID string  `json:"element_id,omitempty" validate:"omitempty,max=256"`
}

// SelectionUpdate reports a text/region selection. The selection payload is
// opaque to the server and relayed verbatim.
type SelectionUpdate struct {
	Selection json.RawMessage `json:"selection" validate:"required"`
	ElementID string          `json:"element_id,omitempty" validate:"omitempty,max=256"`
}

// PresenceUpdate merges metadata into the sender's presence entry.
// Only non-nil fields are applied.
type PresenceUpdate struct {
	Status        *string `json:"status,omitempty" validate:"omitempty,max=64"`
	CursorVisible *bool   `json:"cursor_visible,omitempty"`
}

// TypingStart signals the sender began typing.
type TypingStart struct{}

// TypingStop signals the sender stopped typing.
type TypingStop struct{}

// CommentCreate creates a threaded comment. Position is an opaque anchor
// (e.g. element + offset) relayed to other clients untouched.
type CommentCreate struct {
	Body     string          `json:"body" validate:"required,max=10000"`
	ParentID string          `json:"parent_id,omitempty" validate:"omitempty,max=64"`
	Position json.RawMessage `json:"position,omitempty"`
}

// CommentUpdate edits the body of an existing comment.
type CommentUpdate struct {
	CommentID string `json:"comment_id" validate:"required,max=64"`
	Body      string `json:"body" validate:"required,max=10000"`
}

// CommentDelete removes a comment.
type CommentDelete struct {
	CommentID string `json:"comment_id" validate:"required,max=64"`
}

// CommentResolve marks a comment thread resolved.
type CommentResolve struct {
	CommentID string `json:"comment_id" validate:"required,max=64"`
}

// ReactionAdd attaches an emoji reaction to a comment.
type ReactionAdd struct {
	CommentID string `json:"comment_id" validate:"required,max=64"`
	Emoji     string `json:"emoji" validate:"required,max=32"`
}

// ReactionRemove detaches the sender's reaction from a comment.
type ReactionRemove struct {
	CommentID string `json:"comment_id" validate:"required,max=64"`
	Emoji     string `json:"emoji" validate:"required,max=32"`
}

// ReactionToggle adds the reaction if absent, removes it if present.
type ReactionToggle struct {
	CommentID string `json:"comment_id" validate:"required,max=64"`
	Emoji     string `json:"emoji" validate:"required,max=32"`
}

// ActivityList is a read-only pagination query over the room activity feed.
type ActivityList struct {
	Limit  int `json:"limit,omitempty" validate:"gte=0,lte=100"`
	Offset int `json:"offset,omitempty" validate:"gte=0"`
}

func (CursorUpdate) clientEvent()    {}
func (SelectionUpdate) clientEvent() {}
func (PresenceUpdate) clientEvent()  {}
func (TypingStart) clientEvent()     {}
func (TypingStop) clientEvent()      {}
func (CommentCreate) clientEvent()   {}
func (CommentUpdate) clientEvent()   {}
func (CommentDelete) clientEvent()   {}
func (CommentResolve) clientEvent()  {}
func (ReactionAdd) clientEvent()     {}
func (ReactionRemove) clientEvent()  {}
func (ReactionToggle) clientEvent()  {}
func (ActivityList) clientEvent()    {}

// DecodeClientEvent decodes and validates an inbound room event payload.
// Unknown event names return a ReplyError with reason unknown_event;
// malformed or out-of-range payloads return invalid_payload with
// per-field messages.
func DecodeClientEvent(event string, payload json.RawMessage) (ClientEvent, error) {
	var ev ClientEvent

	switch event {
	case EventCursorUpdate:
		ev = &CursorUpdate{}
	case EventSelectionUpdate:
		ev = &SelectionUpdate{}
	case EventPresenceUpdate:
		ev = &PresenceUpdate{}
	case EventTypingStart:
		ev = &TypingStart{}
	case EventTypingStop:
		ev = &TypingStop{}
	case EventCommentCreate:
		ev = &CommentCreate{}
	case EventCommentUpdate:
		ev = &CommentUpdate{}
	case EventCommentDelete:
		ev = &CommentDelete{}
	case EventCommentResolve:
		ev = &CommentResolve{}
	case EventReactionAdd:
		ev = &ReactionAdd{}
	case EventReactionRemove:
		ev = &ReactionRemove{}
	case EventReactionToggle:
		ev = &ReactionToggle{}
	case EventActivityList:
		ev = &ActivityList{}
	default:
		return nil, NewReplyError(ReasonUnknownEvent)
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, ev); err != nil {
			return nil, NewValidationError(map[string]string{"payload": "malformed JSON"})
		}
	}

	if err := validateStruct(ev); err != nil {
		return nil, err
	}

	return ev, nil
}
