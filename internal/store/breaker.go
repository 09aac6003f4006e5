// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package store

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/driftlabs/roomkit/internal/logging"
	"github.com/driftlabs/roomkit/internal/models"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("store: unavailable")

// BreakerConfig tunes the circuit breaker wrapping the store.
type BreakerConfig struct {
	// MaxFailures is the consecutive infrastructure failure count that
	// opens the circuit.
	MaxFailures uint32

	// Timeout is how long the circuit stays open before probing again.
	Timeout time.Duration
}

// commentOutcome carries the two-value results through the generic breaker.
type commentOutcome struct {
	comment models.Comment
	added   bool
}

// BreakerStore wraps a Store with a circuit breaker. Domain outcomes
// (ErrNotFound, ErrUnauthorized) count as successes so that client
// mistakes never open the circuit; only infrastructure errors trip it.
type BreakerStore struct {
	inner Store
	cb    *gobreaker.CircuitBreaker[any]
}

// NewBreakerStore wraps inner with a circuit breaker.
func NewBreakerStore(inner Store, cfg BreakerConfig) *BreakerStore {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:    "store",
		Timeout: cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnauthorized)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("component", "store").
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}

	return &BreakerStore{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[any](settings),
	}
}

func (b *BreakerStore) execute(fn func() (any, error)) (any, error) {
	out, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrUnavailable
	}
	return out, err
}

func (b *BreakerStore) executeComment(fn func() (models.Comment, error)) (models.Comment, error) {
	out, err := b.execute(func() (any, error) {
		c, err := fn()
		return c, err
	})
	if err != nil {
		return models.Comment{}, err
	}
	return out.(models.Comment), nil
}

// CreateComment implements CommentStore.
func (b *BreakerStore) CreateComment(ctx context.Context, c models.Comment) (models.Comment, error) {
	return b.executeComment(func() (models.Comment, error) {
		return b.inner.CreateComment(ctx, c)
	})
}

// UpdateComment implements CommentStore.
func (b *BreakerStore) UpdateComment(ctx context.Context, roomID, commentID, userID, body string) (models.Comment, error) {
	return b.executeComment(func() (models.Comment, error) {
		return b.inner.UpdateComment(ctx, roomID, commentID, userID, body)
	})
}

// DeleteComment implements CommentStore.
func (b *BreakerStore) DeleteComment(ctx context.Context, roomID, commentID, userID string) (models.Comment, error) {
	return b.executeComment(func() (models.Comment, error) {
		return b.inner.DeleteComment(ctx, roomID, commentID, userID)
	})
}

// ResolveComment implements CommentStore.
func (b *BreakerStore) ResolveComment(ctx context.Context, roomID, commentID, userID string) (models.Comment, error) {
	return b.executeComment(func() (models.Comment, error) {
		return b.inner.ResolveComment(ctx, roomID, commentID, userID)
	})
}

// ListComments implements CommentStore.
func (b *BreakerStore) ListComments(ctx context.Context, roomID string) ([]models.Comment, error) {
	out, err := b.execute(func() (any, error) {
		return b.inner.ListComments(ctx, roomID)
	})
	if err != nil {
		return nil, err
	}
	return out.([]models.Comment), nil
}

// AddReaction implements CommentStore.
func (b *BreakerStore) AddReaction(ctx context.Context, roomID, commentID, userID, emoji string) (models.Comment, error) {
	return b.executeComment(func() (models.Comment, error) {
		return b.inner.AddReaction(ctx, roomID, commentID, userID, emoji)
	})
}

// RemoveReaction implements CommentStore.
func (b *BreakerStore) RemoveReaction(ctx context.Context, roomID, commentID, userID, emoji string) (models.Comment, error) {
	return b.executeComment(func() (models.Comment, error) {
		return b.inner.RemoveReaction(ctx, roomID, commentID, userID, emoji)
	})
}

// ToggleReaction implements CommentStore.
func (b *BreakerStore) ToggleReaction(ctx context.Context, roomID, commentID, userID, emoji string) (models.Comment, bool, error) {
	out, err := b.execute(func() (any, error) {
		c, added, err := b.inner.ToggleReaction(ctx, roomID, commentID, userID, emoji)
		return commentOutcome{comment: c, added: added}, err
	})
	if err != nil {
		return models.Comment{}, false, err
	}
	res := out.(commentOutcome)
	return res.comment, res.added, nil
}

// AppendActivity implements ActivityStore.
func (b *BreakerStore) AppendActivity(ctx context.Context, e models.ActivityEntry) (models.ActivityEntry, error) {
	out, err := b.execute(func() (any, error) {
		return b.inner.AppendActivity(ctx, e)
	})
	if err != nil {
		return models.ActivityEntry{}, err
	}
	return out.(models.ActivityEntry), nil
}

// ListActivity implements ActivityStore.
func (b *BreakerStore) ListActivity(ctx context.Context, roomID string, limit, offset int) ([]models.ActivityEntry, error) {
	out, err := b.execute(func() (any, error) {
		return b.inner.ListActivity(ctx, roomID, limit, offset)
	})
	if err != nil {
		return nil, err
	}
	return out.([]models.ActivityEntry), nil
}

// Close implements Store. Close bypasses the breaker.
func (b *BreakerStore) Close() error {
	return b.inner.Close()
}
