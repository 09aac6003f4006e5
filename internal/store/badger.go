// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package store

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/driftlabs/roomkit/internal/logging"
	"github.com/driftlabs/roomkit/internal/models"
)

// Key layout:
//
//	c:<comment_id>                       -> comment JSON (room + owner inside)
//	cr:<room_id>:<created_ns>:<comment_id> -> comment id (room listing index)
//	a:<room_id>:<created_ns>:<entry_id>  -> activity entry JSON
//
// Comment lookups go through the primary key so room/owner mismatches can
// be told apart from true absence.
const (
	commentPrefix  = "c:"
	roomIdxPrefix  = "cr:"
	activityPrefix = "a:"
)

// BadgerStore is an embedded badger-backed Store.
type BadgerStore struct {
	db *badger.DB
}

// Options configures the badger store.
type Options struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps all data in RAM. Used for tests and the "memory"
	// store backend.
	InMemory bool
}

// Open opens (or creates) the store.
func Open(opts Options) (*BadgerStore, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		bopts = badger.DefaultOptions(opts.Path)
	}
	// Badger's default logger prints to stdout; route it nowhere and let
	// our own call sites log failures with context.
	bopts = bopts.WithLogger(nil)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}

	logging.Info().
		Str("component", "store").
		Bool("in_memory", opts.InMemory).
		Str("path", opts.Path).
		Msg("store opened")

	return &BadgerStore{db: db}, nil
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func commentKey(commentID string) []byte {
	return []byte(commentPrefix + commentID)
}

func roomIdxKey(roomID string, createdAt time.Time, commentID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", roomIdxPrefix, roomID, createdAt.UnixNano(), commentID))
}

func activityKey(roomID string, createdAt time.Time, entryID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", activityPrefix, roomID, createdAt.UnixNano(), entryID))
}

// CreateComment implements CommentStore.
func (s *BadgerStore) CreateComment(_ context.Context, c models.Comment) (models.Comment, error) {
	now := time.Now().UTC()
	c.ID = uuid.New().String()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Resolved = false
	c.Reactions = nil

	err := s.db.Update(func(txn *badger.Txn) error {
		val, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal comment: %w", err)
		}
		if err := txn.Set(commentKey(c.ID), val); err != nil {
			return err
		}
		return txn.Set(roomIdxKey(c.RoomID, c.CreatedAt, c.ID), []byte(c.ID))
	})
	if err != nil {
		return models.Comment{}, fmt.Errorf("create comment: %w", err)
	}
	return c, nil
}

// getOwned loads a comment and enforces the room/owner match.
// checkOwner=false skips the owner check (reactions only need membership).
func getOwned(txn *badger.Txn, roomID, commentID, userID string, checkOwner bool) (models.Comment, error) {
	item, err := txn.Get(commentKey(commentID))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return models.Comment{}, ErrNotFound
		}
		return models.Comment{}, err
	}

	var c models.Comment
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &c)
	}); err != nil {
		return models.Comment{}, fmt.Errorf("decode comment: %w", err)
	}

	if c.RoomID != roomID {
		return models.Comment{}, ErrUnauthorized
	}
	if checkOwner && c.UserID != userID {
		return models.Comment{}, ErrUnauthorized
	}
	return c, nil
}

func putComment(txn *badger.Txn, c models.Comment) error {
	val, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal comment: %w", err)
	}
	return txn.Set(commentKey(c.ID), val)
}

// UpdateComment implements CommentStore.
func (s *BadgerStore) UpdateComment(_ context.Context, roomID, commentID, userID, body string) (models.Comment, error) {
	var out models.Comment
	err := s.db.Update(func(txn *badger.Txn) error {
		c, err := getOwned(txn, roomID, commentID, userID, true)
		if err != nil {
			return err
		}
		c.Body = body
		c.UpdatedAt = time.Now().UTC()
		if err := putComment(txn, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

// DeleteComment implements CommentStore.
func (s *BadgerStore) DeleteComment(_ context.Context, roomID, commentID, userID string) (models.Comment, error) {
	var out models.Comment
	err := s.db.Update(func(txn *badger.Txn) error {
		c, err := getOwned(txn, roomID, commentID, userID, true)
		if err != nil {
			return err
		}
		if err := txn.Delete(commentKey(c.ID)); err != nil {
			return err
		}
		if err := txn.Delete(roomIdxKey(c.RoomID, c.CreatedAt, c.ID)); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

// ResolveComment implements CommentStore.
func (s *BadgerStore) ResolveComment(_ context.Context, roomID, commentID, userID string) (models.Comment, error) {
	var out models.Comment
	err := s.db.Update(func(txn *badger.Txn) error {
		c, err := getOwned(txn, roomID, commentID, userID, true)
		if err != nil {
			return err
		}
		c.Resolved = true
		c.UpdatedAt = time.Now().UTC()
		if err := putComment(txn, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

// ListComments implements CommentStore.
func (s *BadgerStore) ListComments(_ context.Context, roomID string) ([]models.Comment, error) {
	var out []models.Comment
	prefix := []byte(roomIdxPrefix + roomID + ":")

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var commentID string
			if err := it.Item().Value(func(val []byte) error {
				commentID = string(val)
				return nil
			}); err != nil {
				return err
			}

			item, err := txn.Get(commentKey(commentID))
			if err != nil {
				// Index rows may briefly outlive a deleted comment.
				if err == badger.ErrKeyNotFound {
					continue
				}
				return err
			}
			var c models.Comment
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &c)
			}); err != nil {
				return err
			}
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	// Index keys are ordered by creation time already; keep the sort as
	// a guard against nanosecond collisions across restarts.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// AddReaction implements CommentStore.
func (s *BadgerStore) AddReaction(_ context.Context, roomID, commentID, userID, emoji string) (models.Comment, error) {
	var out models.Comment
	err := s.db.Update(func(txn *badger.Txn) error {
		c, err := getOwned(txn, roomID, commentID, userID, false)
		if err != nil {
			return err
		}
		if !hasReaction(c, userID, emoji) {
			c.Reactions = append(c.Reactions, models.Reaction{
				UserID:    userID,
				Emoji:     emoji,
				CreatedAt: time.Now().UTC(),
			})
			if err := putComment(txn, c); err != nil {
				return err
			}
		}
		out = c
		return nil
	})
	return out, err
}

// RemoveReaction implements CommentStore.
func (s *BadgerStore) RemoveReaction(_ context.Context, roomID, commentID, userID, emoji string) (models.Comment, error) {
	var out models.Comment
	err := s.db.Update(func(txn *badger.Txn) error {
		c, err := getOwned(txn, roomID, commentID, userID, false)
		if err != nil {
			return err
		}
		kept := c.Reactions[:0]
		for _, r := range c.Reactions {
			if r.UserID == userID && r.Emoji == emoji {
				continue
			}
			kept = append(kept, r)
		}
		c.Reactions = kept
		if err := putComment(txn, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

// ToggleReaction implements CommentStore.
func (s *BadgerStore) ToggleReaction(ctx context.Context, roomID, commentID, userID, emoji string) (models.Comment, bool, error) {
	var out models.Comment
	var added bool
	err := s.db.Update(func(txn *badger.Txn) error {
		c, err := getOwned(txn, roomID, commentID, userID, false)
		if err != nil {
			return err
		}
		if hasReaction(c, userID, emoji) {
			kept := c.Reactions[:0]
			for _, r := range c.Reactions {
				if r.UserID == userID && r.Emoji == emoji {
					continue
				}
				kept = append(kept, r)
			}
			c.Reactions = kept
			added = false
		} else {
			c.Reactions = append(c.Reactions, models.Reaction{
				UserID:    userID,
				Emoji:     emoji,
				CreatedAt: time.Now().UTC(),
			})
			added = true
		}
		if err := putComment(txn, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, added, err
}

func hasReaction(c models.Comment, userID, emoji string) bool {
	for _, r := range c.Reactions {
		if r.UserID == userID && r.Emoji == emoji {
			return true
		}
	}
	return false
}

// AppendActivity implements ActivityStore.
func (s *BadgerStore) AppendActivity(_ context.Context, e models.ActivityEntry) (models.ActivityEntry, error) {
	e.ID = uuid.New().String()
	e.CreatedAt = time.Now().UTC()

	err := s.db.Update(func(txn *badger.Txn) error {
		val, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal activity: %w", err)
		}
		return txn.Set(activityKey(e.RoomID, e.CreatedAt, e.ID), val)
	})
	if err != nil {
		return models.ActivityEntry{}, fmt.Errorf("append activity: %w", err)
	}
	return e, nil
}

// ListActivity implements ActivityStore. Entries are returned newest-first.
func (s *BadgerStore) ListActivity(_ context.Context, roomID string, limit, offset int) ([]models.ActivityEntry, error) {
	if limit <= 0 {
		limit = 25
	}

	var out []models.ActivityEntry
	prefix := []byte(activityPrefix + roomID + ":")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts just past the prefix range.
		seek := append(append([]byte{}, prefix...), 0xff)
		skipped := 0
		for it.Seek(seek); it.Valid() && bytes.HasPrefix(it.Item().Key(), prefix); it.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			if len(out) >= limit {
				break
			}
			var e models.ActivityEntry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return out, nil
}
