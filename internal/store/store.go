// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package store

import (
	"context"
	"errors"

	"github.com/driftlabs/roomkit/internal/models"
)

// Sentinel errors surfaced to room sessions. Sessions map these onto
// wire-level reply reasons; they are domain outcomes, not infrastructure
// failures, and must not trip the circuit breaker.
var (
	// ErrNotFound: the referenced comment does not exist.
	ErrNotFound = errors.New("comment not found")

	// ErrUnauthorized: room or owner mismatch on a mutation. Returned
	// instead of ErrNotFound when the comment exists but belongs to
	// someone else, so ownership checks don't leak existence.
	ErrUnauthorized = errors.New("requester does not own the comment")
)

// CommentStore persists threaded comments and their reactions.
// Update/Delete/Resolve enforce ownership: the mutation proceeds only
// when both roomID and the stored author match the requester.
type CommentStore interface {
	// CreateComment persists a new comment and returns the canonical
	// record with server-assigned id and timestamps.
	CreateComment(ctx context.Context, c models.Comment) (models.Comment, error)

	// UpdateComment replaces the body of a comment owned by userID.
	UpdateComment(ctx context.Context, roomID, commentID, userID, body string) (models.Comment, error)

	// DeleteComment removes a comment owned by userID and returns the
	// deleted record.
	DeleteComment(ctx context.Context, roomID, commentID, userID string) (models.Comment, error)

	// ResolveComment marks a comment owned by userID resolved.
	ResolveComment(ctx context.Context, roomID, commentID, userID string) (models.Comment, error)

	// ListComments returns the room's comments in creation order.
	ListComments(ctx context.Context, roomID string) ([]models.Comment, error)

	// AddReaction attaches userID's emoji reaction. Adding the same
	// reaction twice is a no-op.
	AddReaction(ctx context.Context, roomID, commentID, userID, emoji string) (models.Comment, error)

	// RemoveReaction detaches userID's emoji reaction if present.
	RemoveReaction(ctx context.Context, roomID, commentID, userID, emoji string) (models.Comment, error)

	// ToggleReaction adds the reaction when absent, removes it when
	// present. The bool reports whether the reaction is now present.
	ToggleReaction(ctx context.Context, roomID, commentID, userID, emoji string) (models.Comment, bool, error)
}

// ActivityStore persists the per-room activity feed.
type ActivityStore interface {
	// AppendActivity persists a feed entry and returns the canonical
	// record with server-assigned id and timestamp.
	AppendActivity(ctx context.Context, e models.ActivityEntry) (models.ActivityEntry, error)

	// ListActivity returns entries newest-first with pagination.
	ListActivity(ctx context.Context, roomID string, limit, offset int) ([]models.ActivityEntry, error)
}

// Store is the full persistence surface consumed by the room session
// protocol.
type Store interface {
	CommentStore
	ActivityStore

	// Close releases the underlying storage.
	Close() error
}
