// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package store

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/driftlabs/roomkit/internal/logging"
	"github.com/driftlabs/roomkit/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

func openTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := Open(Options{InMemory: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func TestCreateAndListComments(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.CreateComment(ctx, models.Comment{RoomID: "doc-1", UserID: "alice", Body: "first"})
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected generated comment id")
	}
	if first.CreatedAt.IsZero() || !first.CreatedAt.Equal(first.UpdatedAt) {
		t.Fatalf("expected matching timestamps, got %v / %v", first.CreatedAt, first.UpdatedAt)
	}

	if _, err := s.CreateComment(ctx, models.Comment{RoomID: "doc-1", UserID: "bob", Body: "second"}); err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	if _, err := s.CreateComment(ctx, models.Comment{RoomID: "doc-2", UserID: "alice", Body: "elsewhere"}); err != nil {
		t.Fatalf("CreateComment: %v", err)
	}

	got, err := s.ListComments(ctx, "doc-1")
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 comments in doc-1, got %d", len(got))
	}
	if got[0].Body != "first" || got[1].Body != "second" {
		t.Fatalf("expected creation order, got %q then %q", got[0].Body, got[1].Body)
	}
}

func TestUpdateCommentOwnership(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c, err := s.CreateComment(ctx, models.Comment{RoomID: "doc-1", UserID: "alice", Body: "draft"})
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}

	t.Run("owner can edit", func(t *testing.T) {
		updated, err := s.UpdateComment(ctx, "doc-1", c.ID, "alice", "final")
		if err != nil {
			t.Fatalf("UpdateComment: %v", err)
		}
		if updated.Body != "final" {
			t.Fatalf("body = %q, want final", updated.Body)
		}
		if !updated.UpdatedAt.After(updated.CreatedAt) && !updated.UpdatedAt.Equal(updated.CreatedAt) {
			t.Fatalf("UpdatedAt %v precedes CreatedAt %v", updated.UpdatedAt, updated.CreatedAt)
		}
	})

	t.Run("other user gets unauthorized", func(t *testing.T) {
		_, err := s.UpdateComment(ctx, "doc-1", c.ID, "bob", "hijack")
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("err = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("wrong room gets unauthorized", func(t *testing.T) {
		_, err := s.UpdateComment(ctx, "doc-2", c.ID, "alice", "cross-room")
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("err = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("missing comment gets not found", func(t *testing.T) {
		_, err := s.UpdateComment(ctx, "doc-1", "no-such-id", "alice", "nope")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestDeleteComment(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c, err := s.CreateComment(ctx, models.Comment{RoomID: "doc-1", UserID: "alice", Body: "ephemeral"})
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}

	if _, err := s.DeleteComment(ctx, "doc-1", c.ID, "bob"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("delete by non-owner: err = %v, want ErrUnauthorized", err)
	}

	if _, err := s.DeleteComment(ctx, "doc-1", c.ID, "alice"); err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}

	if _, err := s.DeleteComment(ctx, "doc-1", c.ID, "alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: err = %v, want ErrNotFound", err)
	}

	got, err := s.ListComments(ctx, "doc-1")
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty room after delete, got %d comments", len(got))
	}
}

func TestResolveComment(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c, err := s.CreateComment(ctx, models.Comment{RoomID: "doc-1", UserID: "alice", Body: "question"})
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}

	resolved, err := s.ResolveComment(ctx, "doc-1", c.ID, "alice")
	if err != nil {
		t.Fatalf("ResolveComment: %v", err)
	}
	if !resolved.Resolved {
		t.Fatal("expected comment to be resolved")
	}
}

func TestReactions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c, err := s.CreateComment(ctx, models.Comment{RoomID: "doc-1", UserID: "alice", Body: "react to me"})
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}

	// Reactions do not require ownership, only room membership.
	withReaction, err := s.AddReaction(ctx, "doc-1", c.ID, "bob", "👍")
	if err != nil {
		t.Fatalf("AddReaction: %v", err)
	}
	if len(withReaction.Reactions) != 1 {
		t.Fatalf("expected 1 reaction, got %d", len(withReaction.Reactions))
	}

	// Adding the same reaction twice is idempotent.
	again, err := s.AddReaction(ctx, "doc-1", c.ID, "bob", "👍")
	if err != nil {
		t.Fatalf("AddReaction: %v", err)
	}
	if len(again.Reactions) != 1 {
		t.Fatalf("duplicate add: expected 1 reaction, got %d", len(again.Reactions))
	}

	removed, err := s.RemoveReaction(ctx, "doc-1", c.ID, "bob", "👍")
	if err != nil {
		t.Fatalf("RemoveReaction: %v", err)
	}
	if len(removed.Reactions) != 0 {
		t.Fatalf("expected 0 reactions after remove, got %d", len(removed.Reactions))
	}

	if _, err := s.AddReaction(ctx, "doc-2", c.ID, "bob", "👍"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("cross-room reaction: err = %v, want ErrUnauthorized", err)
	}
}

func TestToggleReaction(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c, err := s.CreateComment(ctx, models.Comment{RoomID: "doc-1", UserID: "alice", Body: "toggle"})
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}

	got, added, err := s.ToggleReaction(ctx, "doc-1", c.ID, "bob", "🎉")
	if err != nil {
		t.Fatalf("ToggleReaction: %v", err)
	}
	if !added || len(got.Reactions) != 1 {
		t.Fatalf("first toggle: added=%v reactions=%d, want added with 1", added, len(got.Reactions))
	}

	got, added, err = s.ToggleReaction(ctx, "doc-1", c.ID, "bob", "🎉")
	if err != nil {
		t.Fatalf("ToggleReaction: %v", err)
	}
	if added || len(got.Reactions) != 0 {
		t.Fatalf("second toggle: added=%v reactions=%d, want removed with 0", added, len(got.Reactions))
	}
}

func TestActivityFeed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, kind := range []string{models.ActivityCommentCreated, models.ActivityCommentResolved, models.ActivityReactionAdded} {
		if _, err := s.AppendActivity(ctx, models.ActivityEntry{
			RoomID: "doc-1",
			UserID: "alice",
			Kind:   kind,
		}); err != nil {
			t.Fatalf("AppendActivity: %v", err)
		}
		// Keep creation timestamps strictly ordered.
		time.Sleep(time.Millisecond)
	}

	got, err := s.ListActivity(ctx, "doc-1", 10, 0)
	if err != nil {
		t.Fatalf("ListActivity: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].Kind != models.ActivityReactionAdded {
		t.Fatalf("expected newest first, got %q", got[0].Kind)
	}

	page, err := s.ListActivity(ctx, "doc-1", 1, 1)
	if err != nil {
		t.Fatalf("ListActivity: %v", err)
	}
	if len(page) != 1 || page[0].Kind != models.ActivityCommentResolved {
		t.Fatalf("offset page = %+v, want the middle entry", page)
	}

	empty, err := s.ListActivity(ctx, "doc-other", 10, 0)
	if err != nil {
		t.Fatalf("ListActivity: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no entries for unknown room, got %d", len(empty))
	}
}

// failingStore simulates an unavailable backend.
type failingStore struct {
	Store
	err error
}

func (f *failingStore) ListComments(context.Context, string) ([]models.Comment, error) {
	return nil, f.err
}

func (f *failingStore) UpdateComment(context.Context, string, string, string, string) (models.Comment, error) {
	return models.Comment{}, f.err
}

func TestBreakerOpensOnInfrastructureFailures(t *testing.T) {
	inner := &failingStore{err: errors.New("disk on fire")}
	b := NewBreakerStore(inner, BreakerConfig{MaxFailures: 3, Timeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := b.ListComments(ctx, "doc-1"); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	if _, err := b.ListComments(ctx, "doc-1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("after trip: err = %v, want ErrUnavailable", err)
	}
}

func TestBreakerIgnoresDomainErrors(t *testing.T) {
	inner := &failingStore{err: ErrUnauthorized}
	b := NewBreakerStore(inner, BreakerConfig{MaxFailures: 2, Timeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := b.UpdateComment(ctx, "doc-1", "c1", "bob", "x"); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("call %d: err = %v, want ErrUnauthorized", i, err)
		}
	}
}

func TestBreakerPassesThroughResults(t *testing.T) {
	s := openTestStore(t)
	b := NewBreakerStore(s, BreakerConfig{})
	ctx := context.Background()

	c, err := b.CreateComment(ctx, models.Comment{RoomID: "doc-1", UserID: "alice", Body: "wrapped"})
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}

	got, err := b.ListComments(ctx, "doc-1")
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if len(got) != 1 || got[0].ID != c.ID {
		t.Fatalf("expected the created comment back, got %+v", got)
	}

	_, added, err := b.ToggleReaction(ctx, "doc-1", c.ID, "bob", "👀")
	if err != nil || !added {
		t.Fatalf("ToggleReaction: added=%v err=%v", added, err)
	}
}
