// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package protocol

import "fmt"

// Reason is the machine-readable cause carried in error replies.
type Reason string

// Error reason vocabulary. These are wire-level contract values; renaming
// one breaks deployed SDK clients.
const (
	// ReasonForbidden: the session role lacks write access.
	ReasonForbidden Reason = "forbidden"

	// ReasonUnauthorized: ownership mismatch on a mutation. Deliberately
	// used instead of not_found so ownership checks don't leak existence.
	ReasonUnauthorized Reason = "unauthorized"

	// ReasonUnauthorizedToken: the join token is missing, invalid, or
	// does not grant this room.
	ReasonUnauthorizedToken Reason = "unauthorized_token"

	// ReasonFeatureNotAvailable: the owning organization's plan does not
	// include the feature (e.g. comments).
	ReasonFeatureNotAvailable Reason = "feature_not_available"

	// ReasonRoomFull: the per-room connection quota is exhausted.
	ReasonRoomFull Reason = "room_full"

	// ReasonInvalidPayload: the payload failed structural validation.
	ReasonInvalidPayload Reason = "invalid_payload"

	// ReasonNotFound: the referenced entity does not exist.
	ReasonNotFound Reason = "not_found"

	// ReasonUnknownEvent: the event name is outside the protocol.
	ReasonUnknownEvent Reason = "unknown_event"

	// ReasonStoreUnavailable: the persistence collaborator is down or its
	// circuit breaker is open. Nothing was persisted or broadcast.
	ReasonStoreUnavailable Reason = "store_unavailable"
)

// ReasonPayload is the response body of an error reply.
type ReasonPayload struct {
	Reason Reason `json:"reason"`
	// Fields carries per-field validation messages for invalid_payload.
	Fields map[string]string `json:"fields,omitempty"`
}

// ReplyError is a dispatch outcome that should be surfaced to the caller
// as an error reply. It never triggers a retry.
type ReplyError struct {
	Reason Reason
	Fields map[string]string
}

// Error implements the error interface.
func (e *ReplyError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("reply error: %s (%d invalid fields)", e.Reason, len(e.Fields))
	}
	return fmt.Sprintf("reply error: %s", e.Reason)
}

// NewReplyError builds a ReplyError for the given reason.
func NewReplyError(reason Reason) *ReplyError {
	return &ReplyError{Reason: reason}
}

// NewValidationError builds an invalid_payload ReplyError with field detail.
func NewValidationError(fields map[string]string) *ReplyError {
	return &ReplyError{Reason: ReasonInvalidPayload, Fields: fields}
}
